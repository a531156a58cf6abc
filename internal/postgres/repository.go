package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/domain"
	"github.com/clicker-admin/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides the durable mirror of store collections and the
// operator audit log.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS store_documents (
			collection VARCHAR(64) NOT NULL,
			doc_key VARCHAR(255) NOT NULL,
			data JSONB NOT NULL,
			synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, doc_key)
		)`,
		`CREATE TABLE IF NOT EXISTS mutation_events (
			id BIGSERIAL PRIMARY KEY,
			actor VARCHAR(128) NOT NULL,
			action VARCHAR(64) NOT NULL,
			player_id VARCHAR(255),
			detail JSONB,
			failed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mutation_events_player ON mutation_events(player_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_mutation_events_created ON mutation_events(created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// ReplaceCollection upserts every document of a collection snapshot and
// removes mirrored documents that are no longer present.
func (r *Repository) ReplaceCollection(ctx context.Context, collection string, docs []store.Document) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning mirror transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM store_documents WHERE collection = $1 AND NOT (doc_key = ANY($2))`,
		collection, keys,
	); err != nil {
		return fmt.Errorf("pruning mirrored documents: %w", err)
	}

	if len(docs) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO store_documents (collection, doc_key, data, synced_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, doc_key)
			DO UPDATE SET data = $3, synced_at = $4
		`
		now := time.Now()
		for _, doc := range docs {
			batch.Queue(query, collection, doc.Key, []byte(doc.Value), now)
		}

		br := tx.SendBatch(ctx, batch)
		for range docs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upserting mirrored documents: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("closing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing mirror transaction: %w", err)
	}
	return nil
}

// ReadCollection returns every mirrored document of a collection in key order
func (r *Repository) ReadCollection(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT doc_key, data FROM store_documents WHERE collection = $1 ORDER BY doc_key`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("reading mirrored collection: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		var data []byte
		if err := rows.Scan(&doc.Key, &data); err != nil {
			return nil, fmt.Errorf("scanning mirrored document: %w", err)
		}
		doc.Value = json.RawMessage(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mirrored documents: %w", err)
	}
	return docs, nil
}

// RecordMutation records an operator action for auditing
func (r *Repository) RecordMutation(ctx context.Context, event domain.MutationEvent) error {
	var detailJSON []byte
	var err error
	if event.Detail != nil {
		detailJSON, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("marshaling detail: %w", err)
		}
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO mutation_events (actor, action, player_id, detail, failed, created_at)
		VALUES ($1, $2, NULLIF($3::text, ''), $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		event.Actor,
		event.Action,
		event.PlayerID,
		detailJSON,
		event.Failed,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("recording mutation: %w", err)
	}
	return nil
}

// ListMutations returns the most recent audit events, optionally for one player
func (r *Repository) ListMutations(ctx context.Context, playerID string, limit int) ([]domain.MutationEvent, error) {
	query := `
		SELECT id, actor, action, COALESCE(player_id, ''), detail, failed, created_at
		FROM mutation_events
		WHERE $1::text = '' OR player_id = $1::text
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing mutations: %w", err)
	}
	defer rows.Close()

	events := []domain.MutationEvent{}
	for rows.Next() {
		var event domain.MutationEvent
		var detail []byte
		if err := rows.Scan(
			&event.ID,
			&event.Actor,
			&event.Action,
			&event.PlayerID,
			&detail,
			&event.Failed,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning mutation: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling detail: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mutations: %w", err)
	}
	return events, nil
}
