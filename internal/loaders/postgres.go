package loaders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

var (
	// ErrNotFound is returned when a lookup matches no active row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("record conflicts with an existing row")
)

// DBPool is the subset of *pgxpool.Pool the client relies on.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresClient struct {
	dsn  string
	pool DBPool
}

func NewPostgresClient(dsn string, maxConns int) (*PostgresClient, error) {
	client := &PostgresClient{
		dsn: dsn,
	}

	pool, err := client.createConnectionPool(maxConns)
	if err != nil {
		return nil, err
	}

	client.pool = pool
	utils.Zlog.Info("Connected to PostgreSQL", zap.Int("max_conns", maxConns))
	return client, nil
}

// NewPostgresClientWithPool wraps an existing pool, e.g. a pgxmock pool in tests.
func NewPostgresClientWithPool(pool DBPool) *PostgresClient {
	return &PostgresClient{pool: pool}
}

func (c *PostgresClient) createConnectionPool(maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Postgres DSN: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = 60 * time.Minute
	cfg.MaxConnIdleTime = 15 * time.Minute
	// Every pooled connection needs the vector codec, not just the first one.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return pool, nil
}

func (c *PostgresClient) Close() error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if c.pool == nil {
		return errors.New("postgres pool not initialised")
	}
	return c.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
