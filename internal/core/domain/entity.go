package domain

// Entity labels the NLP capabilities are expected to produce.
const (
	LabelPerson = "PERSON"
	LabelGPE    = "GPE"
	LabelLoc    = "LOC"
	LabelOrg    = "ORG"
	LabelDate   = "DATE"
)

// BrowseLabels are the labels shown in discovery views.
var BrowseLabels = []string{LabelPerson, LabelGPE, LabelLoc, LabelOrg, LabelDate}

// Entity is a named thing recognised in text.
// Entities are globally deduplicated on (Text, Label).
type Entity struct {
	ID    int64
	Text  string
	Label string
}

// EntityKey identifies an entity before it has a database id.
type EntityKey struct {
	Text  string
	Label string
}

// Appearance records that an entity occurs on a page of a document.
type Appearance struct {
	Entity     EntityKey
	PageNumber int
}

// Relationship is a directed, phrase-qualified edge between two entities
// co-occurring in one sentence.
type Relationship struct {
	Subject    EntityKey
	Object     EntityKey
	Phrase     string
	PageNumber int
}

// StoredRelationship is a relationship row as persisted.
type StoredRelationship struct {
	SubjectID  int64
	ObjectID   int64
	Phrase     string
	DocID      int64
	PageNumber int
}

// BrowseEntry is one row of the aggregated entity-frequency cache.
type BrowseEntry struct {
	EntityID        int64
	Text            string
	Label           string
	DocumentCount   int
	AppearanceCount int
}

// Mention is one entity occurrence within analysed text.
// Start and End are byte offsets into the analysed text.
type Mention struct {
	Text  string
	Label string
	Start int
	End   int

	// Context is the phrase that anchors an embedding chunk for this mention.
	// Empty when the capability cannot provide one.
	Context string
}

// Key returns the deduplication key of the mention's entity.
func (m Mention) Key() EntityKey {
	return EntityKey{Text: m.Text, Label: m.Label}
}

// Sentence is a sentence boundary with the mentions it contains, in order.
type Sentence struct {
	Start    int
	End      int
	Mentions []Mention
}

// Analysis is the output of an NLP capability over one text.
type Analysis struct {
	Sentences []Sentence
}

// Mentions returns all mentions across sentences, in order.
func (a *Analysis) Mentions() []Mention {
	var out []Mention
	for _, s := range a.Sentences {
		out = append(out, s.Mentions...)
	}
	return out
}
