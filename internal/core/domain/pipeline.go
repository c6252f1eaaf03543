package domain

import "time"

// Batch pipeline phase names.
const (
	PhaseExtract  = "extract"
	PhaseNLP      = "nlp"
	PhaseFinalize = "finalize"
	PhaseEmbed    = "embed"
)

// PipelineOptions configures a batch pipeline run.
type PipelineOptions struct {
	// Workers is the parallelism of every phase. Defaults to 1 when < 1.
	Workers int

	// EmbedBatchSize is the number of chunks per embedding batch.
	EmbedBatchSize int

	// UseGPU is passed to NLP capability loading.
	UseGPU bool

	// FullRebuild clears all production derived tables during finalize
	// instead of only the rows of documents staged in this run.
	FullRebuild bool
}

// PhaseReport is the outcome of one batch phase.
type PhaseReport struct {
	Name     string
	Skipped  bool
	Input    int
	Output   int
	Errors   int
	Duration time.Duration
}

// PipelineReport summarises a batch pipeline run.
type PipelineReport struct {
	RunID     string
	StartedAt time.Time
	EndedAt   time.Time
	Phases    []PhaseReport
}

// Phase returns the report for the named phase, or nil.
func (r *PipelineReport) Phase(name string) *PhaseReport {
	for i := range r.Phases {
		if r.Phases[i].Name == name {
			return &r.Phases[i]
		}
	}
	return nil
}

// StagedPage is a page of extracted text held in staging.
type StagedPage struct {
	DocID      int64
	PageNumber int
	Text       string
}

// StagedEntity is an entity occurrence found by the batch NLP phase.
type StagedEntity struct {
	DocID      int64  `json:"doc_id"`
	PageNumber int    `json:"page"`
	Text       string `json:"text"`
	Label      string `json:"label"`
}

// StagedRelationship is a relationship found by the batch NLP phase.
type StagedRelationship struct {
	DocID        int64  `json:"doc_id"`
	PageNumber   int    `json:"page"`
	SubjectText  string `json:"subj_text"`
	SubjectLabel string `json:"subj_label"`
	ObjectText   string `json:"obj_text"`
	ObjectLabel  string `json:"obj_label"`
	Phrase       string `json:"phrase"`
}

// StagedChunk is an embedding candidate found by the batch NLP phase.
type StagedChunk struct {
	ID          string    `json:"id"`
	DocID       int64     `json:"doc_id"`
	PageNumber  int       `json:"page"`
	EntityText  string    `json:"entity_text"`
	EntityLabel string    `json:"entity_label"`
	Text        string    `json:"chunk_text"`
	Embedding   []float32 `json:"-"`
}
