package prose

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

func TestBuild_Offsets(t *testing.T) {
	text := "Alice met Bob in Paris.  Then Bob left."
	a := build(text,
		[]string{"Alice met Bob in Paris.", "Then Bob left."},
		[]rawEntity{
			{Text: "Alice", Label: "PERSON"},
			{Text: "Bob", Label: "PERSON"},
			{Text: "Paris", Label: "GPE"},
			{Text: "Bob", Label: "PERSON"},
		})

	require.Len(t, a.Sentences, 2)
	assert.Equal(t, "Alice met Bob in Paris.", text[a.Sentences[0].Start:a.Sentences[0].End])
	assert.Equal(t, "Then Bob left.", text[a.Sentences[1].Start:a.Sentences[1].End])

	first := a.Sentences[0].Mentions
	require.Len(t, first, 3)
	assert.Equal(t, domain.Mention{
		Text: "Alice", Label: "PERSON", Start: 0, End: 5, Context: "Alice met Bob in Paris.",
	}, first[0])
	assert.Equal(t, 10, first[1].Start)
	assert.Equal(t, "GPE", first[2].Label)

	second := a.Sentences[1].Mentions
	require.Len(t, second, 1)
	assert.Equal(t, "Bob", text[second[0].Start:second[0].End])
	assert.Equal(t, 30, second[0].Start)
}

func TestBuild_UnplaceableInput(t *testing.T) {
	text := "Alice went home."
	a := build(text,
		[]string{"Not in the text.", "Alice went home."},
		[]rawEntity{{Text: "Nobody", Label: "PERSON"}, {Text: " ", Label: "GPE"}, {Text: "Alice", Label: "PERSON"}})

	require.Len(t, a.Sentences, 1)
	require.Len(t, a.Sentences[0].Mentions, 1)
	assert.Equal(t, "Alice", a.Sentences[0].Mentions[0].Text)
}

func TestNormaliseLabel(t *testing.T) {
	tests := map[string]string{
		"PERSON":       domain.LabelPerson,
		"per":          domain.LabelPerson,
		"GPE":          domain.LabelGPE,
		"Organization": domain.LabelOrg,
		"LOCATION":     domain.LabelLoc,
		"date":         domain.LabelDate,
	}
	for in, want := range tests {
		assert.Equal(t, want, normaliseLabel(in), in)
	}
}

func TestContextPhrase(t *testing.T) {
	assert.Equal(t, "a b c", contextPhrase("  a\n b\t c "))

	long := ""
	for len(long) < 2*domain.MaxChunkContextLength {
		long += "word "
	}
	got := contextPhrase(long)
	assert.LessOrEqual(t, len(got), domain.MaxChunkContextLength)
	assert.NotContains(t, got[len(got)-1:], " ")
}

func TestLoader_Load(t *testing.T) {
	l := NewLoader()

	c, err := l.Load(context.Background(), driven.NLPLoadOptions{})
	require.NoError(t, err)
	defer c.Close()

	text := "Alice went home. Bob stayed in the office."
	a, err := c.Analyze(context.Background(), text)
	require.NoError(t, err)
	require.NotEmpty(t, a.Sentences)

	for _, s := range a.Sentences {
		assert.True(t, s.Start >= 0 && s.End <= len(text) && s.Start < s.End)
		for _, m := range s.Mentions {
			assert.Equal(t, m.Text, text[m.Start:m.End])
			assert.True(t, m.Start >= s.Start && m.End <= s.End)
		}
	}

	empty, err := c.Analyze(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, empty.Sentences)
}

func TestLoader_GPUFallback(t *testing.T) {
	c, err := NewLoader().Load(context.Background(), driven.NLPLoadOptions{UseGPU: true})
	assert.ErrorIs(t, err, domain.ErrGPUUnavailable)
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader().Load(ctx, driven.NLPLoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
