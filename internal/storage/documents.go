package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sociofi/internal/models"
)

// DocumentStore persists embedded document chunks.
type DocumentStore struct {
	db     *sql.DB
	driver string
}

func NewDocumentStore(db *sql.DB, driver string) *DocumentStore {
	return &DocumentStore{db: db, driver: Normalize(driver)}
}

// allowed_roles is stored as ",Role,Role," so one LIKE matches a whole role name.
func encodeRoles(roles []string) string {
	if len(roles) == 0 {
		return ","
	}
	return "," + strings.Join(roles, ",") + ","
}

// likeEscaper escapes LIKE wildcards with '!', which no driver treats
// specially inside string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// rolePattern matches role as a whole ",Role," token.
func rolePattern(role string) string {
	return "%," + likeEscaper.Replace(role) + ",%"
}

func decodeRoles(raw string) []string {
	trimmed := strings.Trim(raw, ",")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ",")
}

// Insert stores records in one transaction.
func (s *DocumentStore) Insert(ctx context.Context, records []models.DocumentEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	if err := s.insertTx(ctx, tx, records); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *DocumentStore) insertTx(ctx context.Context, tx *sql.Tx, records []models.DocumentEmbedding) error {
	query := rebind(s.driver, `INSERT INTO document_embeddings
		(id, document_name, chunk_index, content, embedding, allowed_roles, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		created := r.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.DocumentName, r.ChunkIndex, r.Content, r.Embedding, encodeRoles(r.AllowedRoles), created); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", r.ChunkIndex, r.DocumentName, err)
		}
	}
	return nil
}

// ReplaceDocument swaps every chunk of name for records atomically.
func (s *DocumentStore) ReplaceDocument(ctx context.Context, name string, records []models.DocumentEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	if _, err := tx.ExecContext(ctx, rebind(s.driver, `DELETE FROM document_embeddings WHERE document_name = ?`), name); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear %s: %w", name, err)
	}
	if err := s.insertTx(ctx, tx, records); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListForRole returns the chunks whose allowed roles contain role or All,
// ordered by document and chunk.
func (s *DocumentStore) ListForRole(ctx context.Context, role string) ([]models.DocumentEmbedding, error) {
	query := rebind(s.driver, `SELECT id, document_name, chunk_index, content, embedding, allowed_roles, created_at
		FROM document_embeddings
		WHERE allowed_roles LIKE ? ESCAPE '!' OR allowed_roles LIKE ? ESCAPE '!'
		ORDER BY document_name, chunk_index`)
	rows, err := s.db.QueryContext(ctx, query, rolePattern(role), rolePattern(models.AccessAll))
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.DocumentEmbedding
	for rows.Next() {
		var (
			rec   models.DocumentEmbedding
			roles string
		)
		if err := rows.Scan(&rec.ID, &rec.DocumentName, &rec.ChunkIndex, &rec.Content, &rec.Embedding, &roles, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		rec.AllowedRoles = decodeRoles(roles)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDocument removes every chunk of name and reports how many were removed.
func (s *DocumentStore) DeleteDocument(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, rebind(s.driver, `DELETE FROM document_embeddings WHERE document_name = ?`), name)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", name, err)
	}
	return res.RowsAffected()
}
