package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// ==================== Batch Store ====================

// batchStore implements driven.BatchStore.
//
// Staged rows are read by attaching the staging database to a dedicated
// connection as schema "staging", so finalize runs as set-based SQL.
type batchStore struct {
	store *Store
}

var _ driven.BatchStore = (*batchStore)(nil)

// RecordExtraction stores extraction side data for a document.
func (s *batchStore) RecordExtraction(ctx context.Context, docID int64, ext *domain.Extraction) error {
	if ext == nil {
		return domain.ErrInvalidInput
	}

	return withTx(ctx, s.store.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET page_count = ?, duration_seconds = ? WHERE id = ?
		`, ext.PageCount, nullFloat(ext.Duration), docID)
		if err != nil {
			return fmt.Errorf("recording page count of document %d: %w", docID, err)
		}
		if err := requireAffected(res, docID); err != nil {
			return err
		}

		for _, q := range []string{
			"DELETE FROM srt_cues WHERE doc_id = ?",
			"DELETE FROM email_metadata WHERE doc_id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, docID); err != nil {
				return fmt.Errorf("clearing side data of document %d: %w", docID, err)
			}
		}

		if err := insertCues(ctx, tx, docID, ext.Cues); err != nil {
			return err
		}
		return insertEmail(ctx, tx, docID, ext.Email)
	})
}

// FinalizeBatch applies the staged run to production in one transaction.
func (s *batchStore) FinalizeBatch(ctx context.Context, stagingPath string, fullRebuild bool) (*driven.FinalizeStats, error) {
	stats := &driven.FinalizeStats{}

	err := s.withStaging(ctx, stagingPath, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM staging.staged_documents").Scan(&stats.Documents); err != nil {
			return fmt.Errorf("counting staged documents: %w", err)
		}

		if fullRebuild {
			for _, q := range []string{
				"DELETE FROM content_index",
				"DELETE FROM entity_appearances",
				"DELETE FROM entity_relationships",
				"DELETE FROM embedding_chunks",
				"DELETE FROM entities",
			} {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					return fmt.Errorf("clearing production tables: %w", err)
				}
			}
		} else {
			for _, table := range []string{"content_index", "entity_appearances", "entity_relationships", "embedding_chunks"} {
				q := "DELETE FROM " + table + " WHERE doc_id IN (SELECT doc_id FROM staging.staged_documents)"
				if _, err := tx.ExecContext(ctx, q); err != nil {
					return fmt.Errorf("clearing %s for staged documents: %w", table, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_index (doc_id, page_number, text)
			SELECT doc_id, page_number, text FROM staging.staged_pages
			ORDER BY doc_id, page_number
		`); err != nil {
			return fmt.Errorf("inserting staged pages: %w", err)
		}

		n, err := execCount(ctx, tx, `
			INSERT OR IGNORE INTO entities (text, label)
			SELECT text, label FROM staging.staged_entities
			UNION SELECT subj_text, subj_label FROM staging.staged_relationships
			UNION SELECT obj_text, obj_label FROM staging.staged_relationships
			UNION SELECT entity_text, entity_label FROM staging.staged_chunks
		`)
		if err != nil {
			return fmt.Errorf("inserting staged entities: %w", err)
		}
		stats.Entities = n

		n, err = execCount(ctx, tx, `
			INSERT OR IGNORE INTO entity_appearances (doc_id, entity_id, page_number)
			SELECT DISTINCT s.doc_id, e.id, s.page_number
			FROM staging.staged_entities s
			JOIN entities e ON e.text = s.text AND e.label = s.label
		`)
		if err != nil {
			return fmt.Errorf("inserting staged appearances: %w", err)
		}
		stats.Appearances = n

		n, err = execCount(ctx, tx, `
			INSERT INTO entity_relationships
				(subject_entity_id, object_entity_id, relationship_phrase, doc_id, page_number)
			SELECT se.id, oe.id, r.phrase, r.doc_id, r.page_number
			FROM staging.staged_relationships r
			JOIN entities se ON se.text = r.subj_text AND se.label = r.subj_label
			JOIN entities oe ON oe.text = r.obj_text AND oe.label = r.obj_label
			ORDER BY r.rowid
		`)
		if err != nil {
			return fmt.Errorf("inserting staged relationships: %w", err)
		}
		stats.Relationships = n

		n, err = execCount(ctx, tx, `
			INSERT OR REPLACE INTO embedding_chunks (id, doc_id, page_number, entity_id, chunk_text, embedding)
			SELECT c.id, c.doc_id, c.page_number, e.id, c.chunk_text, c.embedding
			FROM staging.staged_chunks c
			JOIN entities e ON e.text = c.entity_text AND e.label = c.entity_label
		`)
		if err != nil {
			return fmt.Errorf("inserting staged chunks: %w", err)
		}
		stats.Chunks = n

		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, status_message = ?, processed_at = ?
			WHERE id IN (SELECT doc_id FROM staging.staged_documents)
		`, string(domain.StatusIndexed), domain.MsgIndexed, formatTime(time.Now())); err != nil {
			return fmt.Errorf("marking staged documents indexed: %w", err)
		}

		n, err = execCount(ctx, tx, `
			DELETE FROM entities
			WHERE id NOT IN (SELECT entity_id FROM entity_appearances)
			  AND id NOT IN (SELECT subject_entity_id FROM entity_relationships)
			  AND id NOT IN (SELECT object_entity_id FROM entity_relationships)
			  AND id NOT IN (SELECT entity_id FROM embedding_chunks)
		`)
		if err != nil {
			return fmt.Errorf("pruning orphan entities: %w", err)
		}
		stats.OrphansPruned = n

		stats.BrowseRows, err = rebuildBrowseCache(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// CommitEmbeddings copies staged vectors onto production chunks.
func (s *batchStore) CommitEmbeddings(ctx context.Context, stagingPath string) (int, error) {
	var n int
	err := s.withStaging(ctx, stagingPath, func(tx *sql.Tx) error {
		var err error
		n, err = execCount(ctx, tx, `
			UPDATE embedding_chunks
			SET embedding = (SELECT c.embedding FROM staging.staged_chunks c WHERE c.id = embedding_chunks.id)
			WHERE id IN (SELECT id FROM staging.staged_chunks WHERE embedding IS NOT NULL)
		`)
		if err != nil {
			return fmt.Errorf("committing embeddings: %w", err)
		}
		return nil
	})
	return n, err
}

// withStaging runs fn in a transaction on a connection with the staging
// database attached. ATTACH is not allowed inside a transaction, so the
// attach and detach bracket it on the same connection.
func (s *batchStore) withStaging(ctx context.Context, stagingPath string, fn func(tx *sql.Tx) error) error {
	conn, err := s.store.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS staging", stagingPath); err != nil {
		return fmt.Errorf("attaching staging database: %w", err)
	}
	defer conn.ExecContext(context.Background(), "DETACH DATABASE staging") //nolint:errcheck

	return withTx(ctx, conn, fn)
}

// execCount runs a statement and returns the affected row count.
func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
