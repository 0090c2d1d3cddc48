package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vkgw/vk-gateway/internal/domain"
)

// Postgres implements Directory against the config.local and
// application.metadata tables.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection to the directory database.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping directory database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// LoadBackends returns the full backend list from config.local.
func (p *Postgres) LoadBackends(ctx context.Context) ([]domain.Record, error) {
	rows, err := p.pool.Query(ctx,
		"SELECT server_id, provider, server_name, server_url FROM config.local")
	if err != nil {
		return nil, fmt.Errorf("failed to load backends: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ServerID, &rec.Provider, &rec.Name, &rec.URL); err != nil {
			return nil, fmt.Errorf("failed to scan backend row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backend rows: %w", err)
	}
	return records, nil
}

// FileBackend returns the server ID that owns the given file, or "" when the
// file has no metadata row.
func (p *Postgres) FileBackend(ctx context.Context, fileID string) (string, error) {
	var serverID string
	err := p.pool.QueryRow(ctx,
		"SELECT server_id FROM application.metadata WHERE file_id = $1", fileID).
		Scan(&serverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up file owner: %w", err)
	}
	return serverID, nil
}

// ExpiredFiles returns all files whose delete_at has passed.
func (p *Postgres) ExpiredFiles(ctx context.Context) ([]ExpiredFile, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT file_id, server_id FROM application.metadata
		 WHERE delete_at IS NOT NULL AND delete_at <= NOW()`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired files: %w", err)
	}
	defer rows.Close()

	var files []ExpiredFile
	for rows.Next() {
		var f ExpiredFile
		if err := rows.Scan(&f.FileID, &f.ServerID); err != nil {
			return nil, fmt.Errorf("failed to scan expired file row: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired file rows: %w", err)
	}
	return files, nil
}

// DeleteFileMetadata removes a file's metadata row.
func (p *Postgres) DeleteFileMetadata(ctx context.Context, fileID string) error {
	if _, err := p.pool.Exec(ctx,
		"DELETE FROM application.metadata WHERE file_id = $1", fileID); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
