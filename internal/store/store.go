// Package store is the hand-written pgx query layer. Every query is
// tenant-scoped; callers pass the tenant ID from the authenticated session.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
