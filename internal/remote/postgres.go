package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store on a single jsonb documents table. Batches
// run inside a transaction, so the remote side either fully applies a batch
// or rolls it back.
type PostgresStore struct {
	db *sql.DB
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	owner_id   TEXT NOT NULL,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner_id, collection, id)
)`

// NewPostgresStore opens a connection pool and ensures the documents table
// exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure documents table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// HealthCheck verifies the database connection is healthy.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List returns all documents under owner/collection ordered by created_at.
func (s *PostgresStore) List(ctx context.Context, owner, collection string) ([]Document, error) {
	query := `
		SELECT doc FROM documents
		WHERE owner_id = $1 AND collection = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, owner, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Get returns a single document or ErrDocNotFound.
func (s *PostgresStore) Get(ctx context.Context, owner, collection, id string) (Document, error) {
	query := `SELECT doc FROM documents WHERE owner_id = $1 AND collection = $2 AND id = $3`

	var raw []byte
	err := s.db.QueryRowContext(ctx, query, owner, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// Set creates or fully replaces a document.
func (s *PostgresStore) Set(ctx context.Context, owner, collection, id string, doc Document) error {
	return s.set(ctx, s.db, owner, collection, id, doc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) set(ctx context.Context, ex execer, owner, collection, id string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	query := `
		INSERT INTO documents (owner_id, collection, id, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, collection, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`
	if _, err := ex.ExecContext(ctx, query, owner, collection, id, raw); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}

// Merge applies a partial update. Fields with nil values are stripped from
// the stored document; jsonb concatenation handles the rest.
func (s *PostgresStore) Merge(ctx context.Context, owner, collection, id string, fields Document) error {
	return s.merge(ctx, s.db, owner, collection, id, fields)
}

func (s *PostgresStore) merge(ctx context.Context, ex execer, owner, collection, id string, fields Document) error {
	set := Document{}
	var clear []string
	for k, v := range fields {
		if v == nil {
			clear = append(clear, k)
			continue
		}
		set[k] = v
	}

	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode merge fields: %w", err)
	}

	query := `
		UPDATE documents
		SET doc = (doc - $4::text[]) || $5::jsonb, updated_at = now()
		WHERE owner_id = $1 AND collection = $2 AND id = $3
	`
	res, err := ex.ExecContext(ctx, query, owner, collection, id, pq.Array(clear), raw)
	if err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDocNotFound
	}
	return nil
}

// Delete removes a document.
func (s *PostgresStore) Delete(ctx context.Context, owner, collection, id string) error {
	return s.delete(ctx, s.db, owner, collection, id)
}

func (s *PostgresStore) delete(ctx context.Context, ex execer, owner, collection, id string) error {
	query := `DELETE FROM documents WHERE owner_id = $1 AND collection = $2 AND id = $3`
	res, err := ex.ExecContext(ctx, query, owner, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDocNotFound
	}
	return nil
}

// Batch applies all operations inside a single transaction.
func (s *PostgresStore) Batch(ctx context.Context, owner string, ops []BatchOp) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			err = s.set(ctx, tx, owner, op.Collection, op.ID, op.Doc)
		case BatchMerge:
			err = s.merge(ctx, tx, owner, op.Collection, op.ID, op.Doc)
		case BatchDelete:
			err = s.delete(ctx, tx, owner, op.Collection, op.ID)
		default:
			err = fmt.Errorf("unknown batch op kind %q", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("batch op %s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
