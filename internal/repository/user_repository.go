package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/soulst9/nestjs-practice/internal/model"
)

// userColumns is the select list shared by every user query.
const userColumns = "id, employee_id, username, email, password_hash, is_active, external_id, auth_provider, created_at, updated_at"

// NewUser carries the fields required to insert a user row.  PasswordHash
// must already be hashed; the repository never sees plaintext.
type NewUser struct {
	EmployeeID   string
	Username     string
	Email        string
	PasswordHash string
	ExternalID   string
	AuthProvider model.AuthProvider
}

// UserUpdate enumerates the mutable user fields.  Nil pointers leave the
// column untouched.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	ExternalID   *string
	AuthProvider *model.AuthProvider
	IsActive     *bool
}

// PageQuery carries typed pagination options.  Sort is restricted to a
// known column set; anything else falls back to id.
type PageQuery struct {
	Offset int
	Limit  int
	Sort   string // "id", "email", "created_at", "updated_at"
	Desc   bool
}

// Page is one page of results plus the total row count for the filter.
type Page[T any] struct {
	Items []T
	Total int64
}

// sortColumn whitelists sortable columns so the ORDER BY clause is never
// built from raw input.
func (q PageQuery) sortColumn() string {
	switch q.Sort {
	case "email", "created_at", "updated_at":
		return q.Sort
	}
	return "id"
}

// normalize clamps offset/limit into usable bounds.
func (q PageQuery) normalize() PageQuery {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return q
}

// UserRepo provides CRUD and query access to the users table.
type UserRepo struct{ db *sql.DB }

// NewUserRepo returns a UserRepo bound to the shared database handle.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// execer abstracts *sql.DB and *sql.Tx so every operation can run inside
// or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction from ctx when one was opened via WithTx,
// otherwise the shared pool.
func (r *UserRepo) conn(ctx context.Context) execer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return r.db
}

// Create inserts a user and returns the stored record.  The unique index
// on email surfaces as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, nu NewUser) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	res, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO users (employee_id, username, email, password_hash, external_id, auth_provider)
		 VALUES (?,?,?,?,?,?)`,
		nu.EmployeeID, nu.Username, email, nu.PasswordHash, nu.ExternalID, string(nu.AuthProvider))
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, uint64(id))
}

// FindByID fetches a user by primary key.  Returns (nil, nil) when the row
// does not exist; soft-deleted users are included so callers can inspect
// the active flag.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// FindByEmail fetches the active user owning the normalized email.
// Returns (nil, nil) when no active user matches.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE email=? AND is_active=1 LIMIT 1", email)
}

// FindByExternalID fetches the active user carrying the given provider
// subject.  Returns (nil, nil) when absent.
func (r *UserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return r.one(ctx, "SELECT "+userColumns+" FROM users WHERE external_id=? AND is_active=1 LIMIT 1", externalID)
}

// Update applies the non-nil fields of upd to the row and returns the
// fresh record.  ErrNotFound when the row does not exist.
func (r *UserRepo) Update(ctx context.Context, id uint64, upd UserUpdate) (*model.User, error) {
	var (
		sets []string
		args []any
	)
	if upd.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *upd.Username)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.ExternalID != nil {
		sets = append(sets, "external_id=?")
		args = append(args, *upd.ExternalID)
	}
	if upd.AuthProvider != nil {
		sets = append(sets, "auth_provider=?")
		args = append(args, string(*upd.AuthProvider))
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *upd.IsActive)
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.conn(ctx).ExecContext(ctx,
		fmt.Sprintf("UPDATE users SET %s, updated_at=UTC_TIMESTAMP() WHERE id=?", strings.Join(sets, ", ")),
		args...)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing row from a no-op update.
		if u, ferr := r.FindByID(ctx, id); ferr == nil && u != nil {
			return u, nil
		}
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, id)
}

// SoftDelete clears the active flag, retiring the account while keeping
// the row (and freeing the email for reuse by a new active account).
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		"UPDATE users SET is_active=0, updated_at=UTC_TIMESTAMP() WHERE id=? AND is_active=1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row permanently and returns the deleted record.
func (r *UserRepo) Delete(ctx context.Context, id uint64) (*model.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	if _, err := r.conn(ctx).ExecContext(ctx, "DELETE FROM users WHERE id=?", id); err != nil {
		return nil, err
	}
	return u, nil
}

// Paginate lists active users ordered by the requested column.
func (r *UserRepo) Paginate(ctx context.Context, q PageQuery) (Page[model.User], error) {
	q = q.normalize()
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}

	var page Page[model.User]
	if err := r.conn(ctx).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE is_active=1").Scan(&page.Total); err != nil {
		return page, err
	}

	rows, err := r.conn(ctx).QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM users WHERE is_active=1 ORDER BY %s %s LIMIT ? OFFSET ?",
			userColumns, q.sortColumn(), dir),
		q.Limit, q.Offset)
	if err != nil {
		return page, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, *u)
	}
	return page, rows.Err()
}

// WithTx runs fn inside a transaction.  The transaction handle travels in
// the context so repository calls made from fn join it transparently.
// fn returning an error rolls everything back.
func (r *UserRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(withTx(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// one runs a single-row query and maps sql.ErrNoRows to (nil, nil).
func (r *UserRepo) one(ctx context.Context, query string, args ...any) (*model.User, error) {
	row := r.conn(ctx).QueryRowContext(ctx, query, args...)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanUserFrom(s scanner) (*model.User, error) {
	var (
		u        model.User
		ext      sql.NullString
		provider sql.NullString
	)
	if err := s.Scan(&u.ID, &u.EmployeeID, &u.Username, &u.Email, &u.PasswordHash,
		&u.IsActive, &ext, &provider, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ExternalID = ext.String
	u.AuthProvider = model.AuthProvider(provider.String)
	return &u, nil
}

func scanUser(rows *sql.Rows) (*model.User, error)   { return scanUserFrom(rows) }
func scanUserRow(row *sql.Row) (*model.User, error)  { return scanUserFrom(row) }

// isDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "1062")
}
