package repository

import (
	"context"
	"database/sql"
)

// txKey is the context key carrying an open transaction between WithTx and
// the repository methods invoked inside it.
type txKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}
