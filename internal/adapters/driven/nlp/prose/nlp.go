// Package prose provides an NLP capability backed by github.com/jdkato/prose/v2.
//
// prose reports sentences and entities as text only, so offsets are
// recovered by scanning the analysed text in order.
package prose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// Verify interface compliance.
var (
	_ driven.NLPLoader     = (*Loader)(nil)
	_ driven.NLPCapability = (*Capability)(nil)
)

// Loader loads prose models.
type Loader struct{}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load builds a capability with the model loaded once. prose runs on the
// CPU only, so a GPU request returns the capability with
// domain.ErrGPUUnavailable.
func (l *Loader) Load(ctx context.Context, opts driven.NLPLoadOptions) (driven.NLPCapability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := loadModel(opts.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNLPUnavailable, err)
	}

	c := &Capability{model: model}
	if opts.UseGPU {
		return c, domain.ErrGPUUnavailable
	}
	return c, nil
}

// loadModel returns the model at dir, or the bundled model when dir is
// empty. The bundled model is only reachable through a document.
func loadModel(dir string) (model *prose.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loading model: %v", r)
		}
	}()

	if dir != "" {
		model = prose.ModelFromDisk(dir)
		if model == nil {
			return nil, fmt.Errorf("no model in %s", dir)
		}
		return model, nil
	}

	doc, err := prose.NewDocument("Warm up.")
	if err != nil {
		return nil, err
	}
	if doc.Model == nil {
		return nil, errors.New("bundled model unavailable")
	}
	return doc.Model, nil
}

// Capability segments and tags text with a loaded prose model.
type Capability struct {
	model *prose.Model
}

// Analyze segments text into sentences and attaches entity mentions with
// byte offsets into text.
func (c *Capability) Analyze(ctx context.Context, text string) (*domain.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return &domain.Analysis{}, nil
	}

	doc, err := prose.NewDocument(text, prose.UsingModel(c.model))
	if err != nil {
		return nil, fmt.Errorf("analysing text: %w", err)
	}

	var sentTexts []string
	for _, s := range doc.Sentences() {
		sentTexts = append(sentTexts, s.Text)
	}
	var ents []rawEntity
	for _, e := range doc.Entities() {
		ents = append(ents, rawEntity{Text: e.Text, Label: e.Label})
	}

	return build(text, sentTexts, ents), nil
}

// Close releases the model.
func (c *Capability) Close() error {
	c.model = nil
	return nil
}

type rawEntity struct {
	Text  string
	Label string
}

// build places sentences and entities into text in order. Sentences that
// cannot be found are dropped, as are entities that fall outside every
// placed sentence.
func build(text string, sentences []string, entities []rawEntity) *domain.Analysis {
	a := &domain.Analysis{}

	cursor := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		i := strings.Index(text[cursor:], s)
		if i < 0 {
			continue
		}
		start := cursor + i
		a.Sentences = append(a.Sentences, domain.Sentence{Start: start, End: start + len(s)})
		cursor = start + len(s)
	}

	cursor = 0
	si := 0
	for _, e := range entities {
		name := strings.TrimSpace(e.Text)
		if name == "" {
			continue
		}
		i := strings.Index(text[cursor:], name)
		if i < 0 {
			continue
		}
		start := cursor + i
		end := start + len(name)
		cursor = end

		for si < len(a.Sentences) && a.Sentences[si].End < end {
			si++
		}
		if si == len(a.Sentences) {
			break
		}
		sent := &a.Sentences[si]
		if start < sent.Start {
			continue
		}

		sent.Mentions = append(sent.Mentions, domain.Mention{
			Text:    name,
			Label:   normaliseLabel(e.Label),
			Start:   start,
			End:     end,
			Context: contextPhrase(text[sent.Start:sent.End]),
		})
	}

	return a
}

// normaliseLabel maps prose labels onto the entity vocabulary.
func normaliseLabel(label string) string {
	switch l := strings.ToUpper(strings.TrimSpace(label)); l {
	case "PER", "PERSON":
		return domain.LabelPerson
	case "LOCATION":
		return domain.LabelLoc
	case "ORGANIZATION":
		return domain.LabelOrg
	default:
		return l
	}
}

// contextPhrase collapses whitespace and cuts the sentence to
// domain.MaxChunkContextLength bytes at a word boundary.
func contextPhrase(sentence string) string {
	s := strings.Join(strings.Fields(sentence), " ")
	if len(s) <= domain.MaxChunkContextLength {
		return s
	}
	cut := strings.LastIndex(s[:domain.MaxChunkContextLength], " ")
	if cut <= 0 {
		cut = domain.MaxChunkContextLength
	}
	return strings.ToValidUTF8(s[:cut], "")
}
