package repository

import (
	"context"
	"database/sql"

	"github.com/soulst9/nestjs-practice/internal/model"
)

// UserRoleRepo provides access to the user_roles association table.  The
// schema does not enforce (user_id, role) uniqueness; RolesForUser
// deduplicates on read instead.
type UserRoleRepo struct{ db *sql.DB }

// NewUserRoleRepo returns a UserRoleRepo bound to the shared handle.
func NewUserRoleRepo(db *sql.DB) *UserRoleRepo { return &UserRoleRepo{db: db} }

func (r *UserRoleRepo) conn(ctx context.Context) execer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return r.db
}

// AddRole grants a role to a user.
func (r *UserRoleRepo) AddRole(ctx context.Context, userID uint64, role model.Role) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role) VALUES (?,?)", userID, int(role))
	return err
}

// RolesForUser returns the distinct roles held by a user, ascending.
func (r *UserRoleRepo) RolesForUser(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		"SELECT DISTINCT role FROM user_roles WHERE user_id=? ORDER BY role", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []model.Role
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		roles = append(roles, model.Role(n))
	}
	return roles, rows.Err()
}

// RemoveRole revokes every grant of role from the user.  ErrNotFound when
// the user held no such role.
func (r *UserRoleRepo) RemoveRole(ctx context.Context, userID uint64, role model.Role) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id=? AND role=?", userID, int(role))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
