// Package db provides the shared database pool abstraction and connection helpers.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by the application. pgxmock
// satisfies it, so stores can be tested without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// ConnConfig holds the road-reference-store connection settings.
type ConnConfig struct {
	Host               string
	Port               int
	Name               string
	User               string
	Password           string
	ConnectTimeout     time.Duration
	StatementTimeoutMS int
}

// DSN renders the config as a libpq keyword/value connection string.
func (c ConnConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s",
		c.Host, c.Port, c.Name, c.User, c.Password)
	if c.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", int(c.ConnectTimeout.Seconds()))
	}
	return dsn
}

// Connect opens a pgx pool against the road reference store. The per-session
// statement timeout is applied on every new connection so long-running spatial
// queries are cancelled server-side.
func Connect(ctx context.Context, cfg ConnConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}
	if cfg.StatementTimeoutMS > 0 {
		pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeoutMS))
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}
	return pool, nil
}
