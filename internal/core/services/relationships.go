package services

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// MaxRelationshipGap is the exclusive upper bound, in characters, on the
// text between two mentions for them to form a relationship.
const MaxRelationshipGap = 75

// RelationshipMatch is a relationship found in analysed text, with the
// byte offset of its subject mention.
type RelationshipMatch struct {
	Subject domain.EntityKey
	Object  domain.EntityKey
	Phrase  string
	Start   int
}

type mentionSpan struct {
	start, end int
	label      string
}

// ExtractRelationships pairs entity mentions that share a sentence and sit
// close together. For every pair the text between the two mentions becomes
// the phrase, and the earlier mention is the subject.
func ExtractRelationships(text string, a *domain.Analysis) []RelationshipMatch {
	if a == nil {
		return nil
	}

	var out []RelationshipMatch
	for _, sent := range a.Sentences {
		mentions := uniqueMentions(sent.Mentions)
		if len(mentions) < 2 {
			continue
		}

		for i := 0; i < len(mentions); i++ {
			for j := i + 1; j < len(mentions); j++ {
				if m, ok := pairRelationship(text, mentions[i], mentions[j]); ok {
					out = append(out, m)
				}
			}
		}
	}
	return out
}

// uniqueMentions drops repeated (start, end, label) spans, keeping order.
func uniqueMentions(mentions []domain.Mention) []domain.Mention {
	seen := make(map[mentionSpan]struct{}, len(mentions))
	out := make([]domain.Mention, 0, len(mentions))
	for _, m := range mentions {
		k := mentionSpan{m.Start, m.End, m.Label}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	return out
}

func pairRelationship(text string, a, b domain.Mention) (RelationshipMatch, bool) {
	start := min(a.End, b.End)
	end := max(a.Start, b.Start)
	if end <= start || start < 0 || end > len(text) {
		return RelationshipMatch{}, false
	}

	gap := text[start:end]
	if utf8.RuneCountInString(gap) >= MaxRelationshipGap {
		return RelationshipMatch{}, false
	}

	phrase := strings.Join(strings.Fields(gap), " ")
	if phrase == "" {
		return RelationshipMatch{}, false
	}

	subj, obj := a, b
	if b.Start <= a.Start {
		subj, obj = b, a
	}

	subjKey := domain.EntityKey{Text: strings.TrimSpace(subj.Text), Label: subj.Label}
	objKey := domain.EntityKey{Text: strings.TrimSpace(obj.Text), Label: obj.Label}
	if subjKey.Text == "" || objKey.Text == "" {
		return RelationshipMatch{}, false
	}

	return RelationshipMatch{
		Subject: subjKey,
		Object:  objKey,
		Phrase:  phrase,
		Start:   subj.Start,
	}, true
}

// CueLocator maps offsets in a transcript of joined cue dialogue back to
// the cue sequence they fall in.
type CueLocator struct {
	starts    []int
	ends      []int
	sequences []int
}

// NewCueLocator builds the transcript for cues, joined by sep, and a
// locator over it.
func NewCueLocator(cues []domain.Cue, sep string) (string, *CueLocator) {
	l := &CueLocator{
		starts:    make([]int, 0, len(cues)),
		ends:      make([]int, 0, len(cues)),
		sequences: make([]int, 0, len(cues)),
	}

	var sb strings.Builder
	for i, c := range cues {
		if i > 0 {
			sb.WriteString(sep)
		}
		l.starts = append(l.starts, sb.Len())
		sb.WriteString(c.Dialogue)
		l.ends = append(l.ends, sb.Len())
		l.sequences = append(l.sequences, c.Sequence)
	}
	return sb.String(), l
}

// Sequence returns the sequence of the cue whose range contains offset.
// Offsets in a separator or outside the transcript map to 1.
func (l *CueLocator) Sequence(offset int) int {
	i := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if i < 0 || offset >= l.ends[i] {
		return 1
	}
	return l.sequences[i]
}
