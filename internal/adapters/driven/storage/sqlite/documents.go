package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, relative_path, file_hash, file_type, status, status_message,
	page_count, file_size_bytes, duration_seconds, added_at, file_modified_at, processed_at`

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// GetDocumentByPath retrieves a document by its relative path.
func (s *documentStore) GetDocumentByPath(ctx context.Context, relativePath string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE relative_path = ?", relativePath)
	return scanDocument(row)
}

// ListDocuments returns documents ordered by id, optionally filtered by status.
func (s *documentStore) ListDocuments(ctx context.Context, status domain.Status) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// FileHashes returns relative path to file hash for every document.
func (s *documentStore) FileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT relative_path, file_hash FROM documents")
	if err != nil {
		return nil, fmt.Errorf("querying file hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scanning file hash: %w", err)
		}
		hashes[path] = hash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file hashes: %w", err)
	}

	return hashes, nil
}

// UpsertDocument registers a file or resets a changed one to New.
func (s *documentStore) UpsertDocument(ctx context.Context, file domain.DocumentFile, message string) (int64, error) {
	var id int64
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO documents (relative_path, file_hash, file_type, status, status_message,
			file_size_bytes, added_at, file_modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET
			file_hash = excluded.file_hash,
			file_type = excluded.file_type,
			status = excluded.status,
			status_message = excluded.status_message,
			file_size_bytes = excluded.file_size_bytes,
			file_modified_at = excluded.file_modified_at
		RETURNING id
	`, file.RelativePath, file.FileHash, string(file.FileType), string(domain.StatusNew),
		domain.TruncateStatusMessage(message), file.SizeBytes,
		formatTime(time.Now()), formatNullableTime(file.ModifiedAt)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting document %s: %w", file.RelativePath, err)
	}
	return id, nil
}

// SetStatus updates a document's status and message. processed_at is left
// alone; only indexing writes it.
func (s *documentStore) SetStatus(ctx context.Context, id int64, status domain.Status, message string) error {
	if !status.IsValid() {
		return fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, status_message = ?
		WHERE id = ?
	`, string(status), domain.TruncateStatusMessage(message), id)
	if err != nil {
		return fmt.Errorf("updating status of document %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// ResetInterrupted moves Queued and Indexing documents back to New.
func (s *documentStore) ResetInterrupted(ctx context.Context, message string) ([]int64, error) {
	var ids []int64
	err := withTx(ctx, s.store.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE documents SET status = ?, status_message = ?
			WHERE status IN (?, ?)
			RETURNING id
		`, string(domain.StatusNew), domain.TruncateStatusMessage(message),
			string(domain.StatusQueued), string(domain.StatusIndexing))
		if err != nil {
			return fmt.Errorf("resetting interrupted documents: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scanning document id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(ids)
	return ids, nil
}

// ResetDocument clears a document's derived rows and sets it to New.
func (s *documentStore) ResetDocument(ctx context.Context, id int64, message string) error {
	return withTx(ctx, s.store.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, status_message = ?, page_count = 0,
				duration_seconds = NULL, processed_at = NULL
			WHERE id = ?
		`, string(domain.StatusNew), domain.TruncateStatusMessage(message), id)
		if err != nil {
			return fmt.Errorf("resetting document %d: %w", id, err)
		}
		if err := requireAffected(res, id); err != nil {
			return err
		}
		return deleteDerived(ctx, tx, id, true)
	})
}

// CountByStatus returns the number of documents per status.
func (s *documentStore) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM documents GROUP BY status ORDER BY status")
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()

	var counts []domain.StatusCount //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.StatusCount
		var status string
		if err := rows.Scan(&status, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		c.Status = domain.Status(status)
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return counts, nil
}

// deleteDerived removes rows owned by a document. Cues and mail headers are
// only removed when withSideData is set.
func deleteDerived(ctx context.Context, tx *sql.Tx, docID int64, withSideData bool) error {
	tables := []string{
		"DELETE FROM content_index WHERE doc_id = ?",
		"DELETE FROM entity_appearances WHERE doc_id = ?",
		"DELETE FROM entity_relationships WHERE doc_id = ?",
		"DELETE FROM embedding_chunks WHERE doc_id = ?",
	}
	if withSideData {
		tables = append(tables,
			"DELETE FROM srt_cues WHERE doc_id = ?",
			"DELETE FROM email_metadata WHERE doc_id = ?",
		)
	}

	for _, q := range tables {
		if _, err := tx.ExecContext(ctx, q, docID); err != nil {
			return fmt.Errorf("clearing derived rows of document %d: %w", docID, err)
		}
	}
	return nil
}

// requireAffected returns domain.ErrNotFound when an update touched no row.
func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// scanDocument scans a document from a row or rows.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var fileType, status string
	var duration sql.NullFloat64
	var addedAt, modifiedAt, processedAt sql.NullString

	if err := row.Scan(&doc.ID, &doc.RelativePath, &doc.FileHash, &fileType, &status,
		&doc.StatusMessage, &doc.PageCount, &doc.FileSizeBytes, &duration,
		&addedAt, &modifiedAt, &processedAt); err != nil {
		if err = notFound(err); errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.FileType = domain.FileType(fileType)
	doc.Status = domain.Status(status)
	if duration.Valid {
		d := duration.Float64
		doc.DurationSeconds = &d
	}
	doc.AddedAt = parseNullableTime(addedAt)
	doc.FileModifiedAt = parseNullableTime(modifiedAt)
	doc.ProcessedAt = parseNullableTime(processedAt)

	return &doc, nil
}
