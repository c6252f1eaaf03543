package domain

// DerivedData is the full set of rows derived from one processing run of a
// document. It replaces any previously derived rows as a unit.
type DerivedData struct {
	Pages         []Page
	Appearances   []Appearance
	Relationships []Relationship
	Cues          []Cue
	Email         *EmailMetadata
	Chunks        []EmbeddingChunk

	PageCount int
	Duration  *float64
}

// EntityKeys returns the distinct entities referenced by appearances,
// relationships and chunks, in first-seen order.
func (d *DerivedData) EntityKeys() []EntityKey {
	seen := make(map[EntityKey]struct{})
	var keys []EntityKey
	add := func(k EntityKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, a := range d.Appearances {
		add(a.Entity)
	}
	for _, r := range d.Relationships {
		add(r.Subject)
		add(r.Object)
	}
	for _, c := range d.Chunks {
		add(c.Entity)
	}
	return keys
}
