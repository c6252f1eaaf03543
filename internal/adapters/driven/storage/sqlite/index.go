package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// ==================== Index Store ====================

// indexStore implements driven.IndexStore.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// ReplaceDerived swaps a document's derived rows in a single transaction.
func (s *indexStore) ReplaceDerived(ctx context.Context, docID int64, data *domain.DerivedData, message string) error {
	if data == nil {
		return domain.ErrInvalidInput
	}

	return withTx(ctx, s.store.db, func(tx *sql.Tx) error {
		if err := deleteDerived(ctx, tx, docID, true); err != nil {
			return err
		}

		ids, err := resolveEntities(ctx, tx, data.EntityKeys())
		if err != nil {
			return err
		}

		if err := insertPages(ctx, tx, docID, data.Pages); err != nil {
			return err
		}
		if err := insertAppearances(ctx, tx, docID, data.Appearances, ids); err != nil {
			return err
		}
		if err := insertRelationships(ctx, tx, docID, data.Relationships, ids); err != nil {
			return err
		}
		if err := insertCues(ctx, tx, docID, data.Cues); err != nil {
			return err
		}
		if err := insertEmail(ctx, tx, docID, data.Email); err != nil {
			return err
		}
		if err := insertChunks(ctx, tx, docID, data.Chunks, ids); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, status_message = ?, page_count = ?,
				duration_seconds = ?, processed_at = ?
			WHERE id = ?
		`, string(domain.StatusIndexed), domain.TruncateStatusMessage(message), data.PageCount,
			nullFloat(data.Duration), formatTime(time.Now()), docID)
		if err != nil {
			return fmt.Errorf("marking document %d indexed: %w", docID, err)
		}
		return requireAffected(res, docID)
	})
}

// Pages returns stored page text ordered by page number.
func (s *indexStore) Pages(ctx context.Context, docID int64, start, end *int) ([]domain.Page, error) {
	query := `SELECT CAST(page_number AS INTEGER), text FROM content_index WHERE doc_id = ?`
	args := []any{docID}

	switch {
	case start != nil && end != nil && *start <= *end:
		query += " AND CAST(page_number AS INTEGER) BETWEEN ? AND ?"
		args = append(args, *start, *end)
	case start != nil:
		query += " AND CAST(page_number AS INTEGER) = ?"
		args = append(args, *start)
	}
	query += " ORDER BY CAST(page_number AS INTEGER)"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page //nolint:prealloc // size unknown from query
	for rows.Next() {
		p := domain.Page{DocID: docID}
		if err := rows.Scan(&p.PageNumber, &p.Text); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		pages = append(pages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}

	return pages, nil
}

// SearchPages runs an FTS5 match over stored pages, best match first.
func (s *indexStore) SearchPages(ctx context.Context, query string, limit int) ([]domain.Page, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT CAST(doc_id AS INTEGER), CAST(page_number AS INTEGER), text
		FROM content_index WHERE content_index MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching pages: %w", err)
	}
	defer rows.Close()

	var pages []domain.Page //nolint:prealloc // size unknown from query
	for rows.Next() {
		var p domain.Page
		if err := rows.Scan(&p.DocID, &p.PageNumber, &p.Text); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		pages = append(pages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return pages, nil
}

// DocumentEntities returns the distinct entities appearing in a document.
func (s *indexStore) DocumentEntities(ctx context.Context, docID int64) ([]domain.Entity, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT DISTINCT e.id, e.text, e.label
		FROM entities e JOIN entity_appearances a ON a.entity_id = e.id
		WHERE a.doc_id = ?
		ORDER BY e.label, e.text
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying document entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.Text, &e.Label); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	return entities, nil
}

// Appearances returns a document's appearances keyed by entity.
func (s *indexStore) Appearances(ctx context.Context, docID int64) ([]domain.Appearance, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT e.text, e.label, a.page_number
		FROM entity_appearances a JOIN entities e ON e.id = a.entity_id
		WHERE a.doc_id = ?
		ORDER BY a.page_number, e.label, e.text
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying appearances: %w", err)
	}
	defer rows.Close()

	var out []domain.Appearance //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a domain.Appearance
		if err := rows.Scan(&a.Entity.Text, &a.Entity.Label, &a.PageNumber); err != nil {
			return nil, fmt.Errorf("scanning appearance: %w", err)
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating appearances: %w", err)
	}

	return out, nil
}

// Relationships returns a document's relationships keyed by entity.
func (s *indexStore) Relationships(ctx context.Context, docID int64) ([]domain.Relationship, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT se.text, se.label, oe.text, oe.label, r.relationship_phrase, r.page_number
		FROM entity_relationships r
		JOIN entities se ON se.id = r.subject_entity_id
		JOIN entities oe ON oe.id = r.object_entity_id
		WHERE r.doc_id = ?
		ORDER BY r.page_number, r.id
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	var out []domain.Relationship //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.Relationship
		if err := rows.Scan(&r.Subject.Text, &r.Subject.Label, &r.Object.Text, &r.Object.Label,
			&r.Phrase, &r.PageNumber); err != nil {
			return nil, fmt.Errorf("scanning relationship: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relationships: %w", err)
	}

	return out, nil
}

// Cues returns a subtitle document's cues ordered by sequence.
func (s *indexStore) Cues(ctx context.Context, docID int64) ([]domain.Cue, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT sequence, timestamp, dialogue FROM srt_cues
		WHERE doc_id = ? ORDER BY sequence
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying cues: %w", err)
	}
	defer rows.Close()

	var cues []domain.Cue //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Cue
		if err := rows.Scan(&c.Sequence, &c.Timestamp, &c.Dialogue); err != nil {
			return nil, fmt.Errorf("scanning cue: %w", err)
		}
		cues = append(cues, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cues: %w", err)
	}

	return cues, nil
}

// EmailMetadata returns a mail document's headers.
func (s *indexStore) EmailMetadata(ctx context.Context, docID int64) (*domain.EmailMetadata, error) {
	var m domain.EmailMetadata
	var from, to, cc, subject, sentAt sql.NullString

	err := s.store.db.QueryRowContext(ctx, `
		SELECT from_address, to_addresses, cc_addresses, subject, sent_at
		FROM email_metadata WHERE doc_id = ?
	`, docID).Scan(&from, &to, &cc, &subject, &sentAt)
	if err != nil {
		return nil, notFound(err)
	}

	m.From, m.To, m.Cc, m.Subject = from.String, to.String, cc.String, subject.String
	if t := parseNullableTime(sentAt); !t.IsZero() {
		m.SentAt = &t
	}
	return &m, nil
}

// EmbeddingChunks returns a document's chunks ordered by page.
func (s *indexStore) EmbeddingChunks(ctx context.Context, docID int64) ([]domain.EmbeddingChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.page_number, c.entity_id, e.text, e.label, c.chunk_text, c.embedding
		FROM embedding_chunks c JOIN entities e ON e.id = c.entity_id
		WHERE c.doc_id = ?
		ORDER BY c.page_number, e.text
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying embedding chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.EmbeddingChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		c := domain.EmbeddingChunk{DocID: docID}
		var blob []byte
		if err := rows.Scan(&c.ID, &c.PageNumber, &c.EntityID, &c.Entity.Text, &c.Entity.Label,
			&c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding chunks: %w", err)
	}

	return chunks, nil
}

// RebuildBrowseCache recomputes the entity-frequency cache.
func (s *indexStore) RebuildBrowseCache(ctx context.Context) (int, error) {
	var n int
	err := withTx(ctx, s.store.db, func(tx *sql.Tx) error {
		var err error
		n, err = rebuildBrowseCache(ctx, tx)
		return err
	})
	return n, err
}

// BrowseEntries reads the browse cache, most widespread entities first.
func (s *indexStore) BrowseEntries(ctx context.Context, label string, limit int) ([]domain.BrowseEntry, error) {
	query := `SELECT entity_id, entity_text, entity_label, document_count, appearance_count FROM browse_cache`
	var args []any
	if label != "" {
		query += " WHERE entity_label = ?"
		args = append(args, label)
	}
	query += " ORDER BY document_count DESC, appearance_count DESC, entity_text"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying browse cache: %w", err)
	}
	defer rows.Close()

	var entries []domain.BrowseEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var b domain.BrowseEntry
		if err := rows.Scan(&b.EntityID, &b.Text, &b.Label, &b.DocumentCount, &b.AppearanceCount); err != nil {
			return nil, fmt.Errorf("scanning browse entry: %w", err)
		}
		entries = append(entries, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating browse cache: %w", err)
	}

	return entries, nil
}

// ==================== Write Helpers ====================

// resolveEntities inserts missing entities and returns ids for every key.
func resolveEntities(ctx context.Context, tx *sql.Tx, keys []domain.EntityKey) (map[domain.EntityKey]int64, error) {
	ids := make(map[domain.EntityKey]int64, len(keys))
	if len(keys) == 0 {
		return ids, nil
	}

	insert, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO entities (text, label) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing entity insert: %w", err)
	}
	defer insert.Close()

	lookup, err := tx.PrepareContext(ctx, "SELECT id FROM entities WHERE text = ? AND label = ?")
	if err != nil {
		return nil, fmt.Errorf("preparing entity lookup: %w", err)
	}
	defer lookup.Close()

	for _, k := range keys {
		if _, err := insert.ExecContext(ctx, k.Text, k.Label); err != nil {
			return nil, fmt.Errorf("inserting entity %q: %w", k.Text, err)
		}
		var id int64
		if err := lookup.QueryRowContext(ctx, k.Text, k.Label).Scan(&id); err != nil {
			return nil, fmt.Errorf("resolving entity %q: %w", k.Text, err)
		}
		ids[k] = id
	}

	return ids, nil
}

func insertPages(ctx context.Context, tx *sql.Tx, docID int64, pages []domain.Page) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO content_index (doc_id, page_number, text) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, docID, p.PageNumber, p.Text); err != nil {
			return fmt.Errorf("inserting page %d: %w", p.PageNumber, err)
		}
	}
	return nil
}

func insertAppearances(ctx context.Context, tx *sql.Tx, docID int64,
	appearances []domain.Appearance, ids map[domain.EntityKey]int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO entity_appearances (doc_id, entity_id, page_number) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing appearance insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range appearances {
		if _, err := stmt.ExecContext(ctx, docID, ids[a.Entity], a.PageNumber); err != nil {
			return fmt.Errorf("inserting appearance of %q: %w", a.Entity.Text, err)
		}
	}
	return nil
}

func insertRelationships(ctx context.Context, tx *sql.Tx, docID int64,
	rels []domain.Relationship, ids map[domain.EntityKey]int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_relationships
			(subject_entity_id, object_entity_id, relationship_phrase, doc_id, page_number)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing relationship insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rels {
		if _, err := stmt.ExecContext(ctx, ids[r.Subject], ids[r.Object], r.Phrase, docID, r.PageNumber); err != nil {
			return fmt.Errorf("inserting relationship: %w", err)
		}
	}
	return nil
}

func insertCues(ctx context.Context, tx *sql.Tx, docID int64, cues []domain.Cue) error {
	if len(cues) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO srt_cues (doc_id, sequence, timestamp, dialogue) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing cue insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cues {
		if _, err := stmt.ExecContext(ctx, docID, c.Sequence, c.Timestamp, c.Dialogue); err != nil {
			return fmt.Errorf("inserting cue %d: %w", c.Sequence, err)
		}
	}
	return nil
}

func insertEmail(ctx context.Context, tx *sql.Tx, docID int64, m *domain.EmailMetadata) error {
	if m == nil {
		return nil
	}

	var sentAt any
	if m.SentAt != nil {
		sentAt = formatTime(*m.SentAt)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO email_metadata
			(doc_id, from_address, to_addresses, cc_addresses, subject, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, docID, nullString(m.From), nullString(m.To), nullString(m.Cc), nullString(m.Subject), sentAt)
	if err != nil {
		return fmt.Errorf("inserting email metadata: %w", err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, docID int64,
	chunks []domain.EmbeddingChunk, ids map[domain.EntityKey]int64) error {
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding_chunks (id, doc_id, page_number, entity_id, chunk_text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, docID, c.PageNumber, ids[c.Entity], c.Text,
			float32SliceToBytes(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// rebuildBrowseCache repopulates browse_cache for the browse labels.
func rebuildBrowseCache(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM browse_cache"); err != nil {
		return 0, fmt.Errorf("clearing browse cache: %w", err)
	}

	args := make([]any, 0, len(domain.BrowseLabels))
	for _, l := range domain.BrowseLabels {
		args = append(args, l)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO browse_cache (entity_id, entity_text, entity_label, document_count, appearance_count)
		SELECT e.id, e.text, e.label, COUNT(DISTINCT a.doc_id), COUNT(*)
		FROM entities e JOIN entity_appearances a ON a.entity_id = e.id
		WHERE e.label IN (`+placeholders(len(args))+`)
		GROUP BY e.id, e.text, e.label
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("rebuilding browse cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading browse cache size: %w", err)
	}
	return int(n), nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
