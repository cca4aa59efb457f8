package adapter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"changanet/internal/infrastructure/database"
	repository "changanet/internal/repository/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PgUserRepository looks users up in the marketplace users table.
type PgUserRepository struct {
	pool  *pgxpool.Pool
	query string
}

// NewPgUserRepository builds a directory reading from table (e.g. "public.users").
func NewPgUserRepository(pool *pgxpool.Pool, table string) (*PgUserRepository, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("user directory: invalid table name %q", table)
	}
	ident := pgx.Identifier{table}
	if schema, name, ok := strings.Cut(table, "."); ok {
		ident = pgx.Identifier{schema, name}
	}
	return &PgUserRepository{
		pool:  pool,
		query: "SELECT EXISTS (SELECT 1 FROM " + ident.Sanitize() + " WHERE id::text = $1)",
	}, nil
}

var _ repository.UserDirectory = (*PgUserRepository)(nil)

func (r *PgUserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgUserRepository: nil pool")
	}
	var ok bool
	if err := r.pool.QueryRow(ctx, r.query, userID).Scan(&ok); err != nil {
		if database.IsTransient(err) {
			return false, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
		}
		return false, err
	}
	return ok, nil
}
