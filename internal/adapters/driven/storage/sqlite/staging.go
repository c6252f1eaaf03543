package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// StagingFile is the staging database file name inside the data directory.
const StagingFile = "staging.db"

var stagingTables = []string{
	"staged_documents",
	"staged_pages",
	"staged_entities",
	"staged_relationships",
	"staged_chunks",
}

const stagingSchema = `
	CREATE TABLE staged_documents (
		doc_id INTEGER PRIMARY KEY
	);
	CREATE TABLE staged_pages (
		doc_id INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (doc_id, page_number)
	);
	CREATE TABLE staged_entities (
		doc_id INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		label TEXT NOT NULL
	);
	CREATE TABLE staged_relationships (
		doc_id INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		subj_text TEXT NOT NULL,
		subj_label TEXT NOT NULL,
		obj_text TEXT NOT NULL,
		obj_label TEXT NOT NULL,
		phrase TEXT NOT NULL
	);
	CREATE TABLE staged_chunks (
		id TEXT PRIMARY KEY,
		doc_id INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		entity_text TEXT NOT NULL,
		entity_label TEXT NOT NULL,
		chunk_text TEXT NOT NULL,
		embedding BLOB
	);
`

// StagingStore is the batch pipeline's intermediate database.
// It lives in its own file so bulk writes never contend with production.
type StagingStore struct {
	db   *sql.DB
	path string
}

var _ driven.StagingStore = (*StagingStore)(nil)

// NewStagingStore opens (creating if needed) staging.db in dataDir.
func NewStagingStore(dataDir string) (*StagingStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, StagingFile)
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	return &StagingStore{db: db, path: path}, nil
}

// Path returns the staging database file path.
func (s *StagingStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *StagingStore) Close() error {
	return s.db.Close()
}

// Reset drops and recreates all staging tables.
func (s *StagingStore) Reset(ctx context.Context) error {
	if err := s.Drop(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stagingSchema); err != nil {
		return fmt.Errorf("creating staging tables: %w", err)
	}
	return nil
}

// Drop removes all staging tables.
func (s *StagingStore) Drop(ctx context.Context) error {
	for _, t := range stagingTables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("dropping %s: %w", t, err)
		}
	}
	return nil
}

// StageDocument records a document and its extracted pages.
func (s *StagingStore) StageDocument(ctx context.Context, docID int64, pages []domain.StagedPage) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO staged_documents (doc_id) VALUES (?)", docID); err != nil {
			return fmt.Errorf("staging document %d: %w", docID, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT OR REPLACE INTO staged_pages (doc_id, page_number, text) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing staged page insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pages {
			if _, err := stmt.ExecContext(ctx, docID, p.PageNumber, p.Text); err != nil {
				return fmt.Errorf("staging page %d of document %d: %w", p.PageNumber, docID, err)
			}
		}
		return nil
	})
}

// CountPages returns the number of staged pages.
func (s *StagingStore) CountPages(ctx context.Context) (int, error) {
	return s.count(ctx, "staged_pages")
}

// CountChunks returns the number of staged chunks.
func (s *StagingStore) CountChunks(ctx context.Context) (int, error) {
	return s.count(ctx, "staged_chunks")
}

func (s *StagingStore) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// Pages returns all staged pages ordered by document and page.
func (s *StagingStore) Pages(ctx context.Context) ([]domain.StagedPage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_id, page_number, text FROM staged_pages ORDER BY doc_id, page_number")
	if err != nil {
		return nil, fmt.Errorf("querying staged pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.StagedPage //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.StagedPage
		if err := rows.Scan(&p.DocID, &p.PageNumber, &p.Text); err != nil {
			return nil, fmt.Errorf("scanning staged page: %w", err)
		}
		pages = append(pages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staged pages: %w", err)
	}

	return pages, nil
}

// DocIDs returns the staged documents in ascending order.
func (s *StagingStore) DocIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT doc_id FROM staged_documents ORDER BY doc_id")
	if err != nil {
		return nil, fmt.Errorf("querying staged documents: %w", err)
	}
	defer rows.Close()

	var ids []int64 //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning staged document: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staged documents: %w", err)
	}

	return ids, nil
}

// InsertEntities stages entity occurrences.
func (s *StagingStore) InsertEntities(ctx context.Context, entities []domain.StagedEntity) error {
	return s.insertMany(ctx,
		"INSERT INTO staged_entities (doc_id, page_number, text, label) VALUES (?, ?, ?, ?)",
		len(entities), func(i int) []any {
			e := entities[i]
			return []any{e.DocID, e.PageNumber, e.Text, e.Label}
		})
}

// InsertRelationships stages relationships.
func (s *StagingStore) InsertRelationships(ctx context.Context, rels []domain.StagedRelationship) error {
	return s.insertMany(ctx, `
		INSERT INTO staged_relationships
			(doc_id, page_number, subj_text, subj_label, obj_text, obj_label, phrase)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(rels), func(i int) []any {
		r := rels[i]
		return []any{r.DocID, r.PageNumber, r.SubjectText, r.SubjectLabel, r.ObjectText, r.ObjectLabel, r.Phrase}
	})
}

// InsertChunks stages embedding candidates.
func (s *StagingStore) InsertChunks(ctx context.Context, chunks []domain.StagedChunk) error {
	return s.insertMany(ctx, `
		INSERT INTO staged_chunks (id, doc_id, page_number, entity_text, entity_label, chunk_text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(chunks), func(i int) []any {
		c := chunks[i]
		return []any{c.ID, c.DocID, c.PageNumber, c.EntityText, c.EntityLabel, c.Text, float32SliceToBytes(c.Embedding)}
	})
}

// Chunks returns staged chunks still waiting for a vector.
func (s *StagingStore) Chunks(ctx context.Context) ([]domain.StagedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, page_number, entity_text, entity_label, chunk_text
		FROM staged_chunks WHERE embedding IS NULL
		ORDER BY doc_id, page_number, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying staged chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.StagedChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.StagedChunk
		if err := rows.Scan(&c.ID, &c.DocID, &c.PageNumber, &c.EntityText, &c.EntityLabel, &c.Text); err != nil {
			return nil, fmt.Errorf("scanning staged chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staged chunks: %w", err)
	}

	return chunks, nil
}

// SetEmbeddings stores vectors for staged chunks by id.
func (s *StagingStore) SetEmbeddings(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE staged_chunks SET embedding = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("preparing embedding update: %w", err)
		}
		defer stmt.Close()

		for id, vec := range vectors {
			if _, err := stmt.ExecContext(ctx, float32SliceToBytes(vec), id); err != nil {
				return fmt.Errorf("storing embedding for chunk %s: %w", id, err)
			}
		}
		return nil
	})
}

// insertMany runs one prepared insert per row inside a transaction.
func (s *StagingStore) insertMany(ctx context.Context, query string, n int, row func(i int) []any) error {
	if n == 0 {
		return nil
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("preparing staged insert: %w", err)
		}
		defer stmt.Close()

		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
				return fmt.Errorf("staged insert: %w", err)
			}
		}
		return nil
	})
}
