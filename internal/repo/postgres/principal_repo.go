package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Principal is a directory row for an account that can confirm logins.
type Principal struct {
	Username string
	Role     string
}

type PrincipalRepository interface {
	FindByUsername(ctx context.Context, username string) (*Principal, error)
	// RoleOf satisfies ticket.Directory.
	RoleOf(ctx context.Context, username string) (string, error)
}

type principalRepository struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepository(pool *pgxpool.Pool) PrincipalRepository {
	return &principalRepository{pool: pool}
}

func (r *principalRepository) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	const q = `SELECT username, role FROM principals WHERE username = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var p Principal
	err := r.pool.QueryRow(ctx, q, username).Scan(&p.Username, &p.Role)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *principalRepository) RoleOf(ctx context.Context, username string) (string, error) {
	p, err := r.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if p == nil {
		// The principal authenticated elsewhere; an account missing from
		// the directory just lands on the default page.
		return "", nil
	}
	return p.Role, nil
}
