package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Open connects to the provider's Postgres endpoint and verifies the
// connection. A failed ping is reported as ErrUnreachable when it looks
// like a network problem.
func Open(ctx context.Context, dsn string, timeout time.Duration) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open provider connection: %w", err)
	}

	// One pipeline run issues sequential queries; a small pool is enough
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(2 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		if IsTransient(err) {
			return nil, fmt.Errorf("%w: ping: %v", ErrUnreachable, err)
		}
		return nil, fmt.Errorf("failed to ping provider: %w", err)
	}

	return conn, nil
}
