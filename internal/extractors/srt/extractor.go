// Package srt provides an Extractor for SubRip subtitle files.
package srt

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles SRT documents.
type Extractor struct{}

// New creates a new SRT extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedTypes returns the file types this extractor handles.
func (e *Extractor) SupportedTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeSRT}
}

// Extract parses cues and returns the dialogue as a single page.
// PageCount is the number of cues.
func (e *Extractor) Extract(_ context.Context, path string, _ domain.ExtractOptions) (*domain.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	cues := ParseCues(string(data))

	dialogue := make([]string, 0, len(cues))
	for _, c := range cues {
		dialogue = append(dialogue, c.Dialogue)
	}

	return &domain.Extraction{
		Pages:     map[int]string{1: strings.Join(dialogue, "\n")},
		PageCount: len(cues),
		Duration:  Duration(cues),
		Cues:      cues,
	}, nil
}

var (
	timestampLine = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)
	blankLines    = regexp.MustCompile(`\n[ \t]*\n`)
	markupTags    = regexp.MustCompile(`<[^>]+>`)
)

// ParseCues reads cues from SRT content. Blocks are separated by blank
// lines; a block is a cue when it starts with a sequence number followed by
// a timestamp line. Anything else is skipped.
func ParseCues(content string) []domain.Cue {
	content = strings.TrimPrefix(content, "\uFEFF")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var cues []domain.Cue
	for _, block := range blankLines.Split(strings.TrimSpace(content), -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		seq, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		ts := strings.TrimSpace(lines[1])
		if !timestampLine.MatchString(ts) {
			continue
		}

		text := markupTags.ReplaceAllString(strings.Join(lines[2:], "\n"), "")
		cues = append(cues, domain.Cue{
			Sequence:  seq,
			Timestamp: ts,
			Dialogue:  strings.TrimSpace(strings.ReplaceAll(text, "\n", " ")),
		})
	}
	return cues
}

// Duration returns the end time of the final cue in seconds, or nil when
// there are no cues.
func Duration(cues []domain.Cue) *float64 {
	if len(cues) == 0 {
		return nil
	}

	m := timestampLine.FindStringSubmatch(cues[len(cues)-1].Timestamp)
	if m == nil {
		return nil
	}

	h, _ := strconv.Atoi(m[5])
	mm, _ := strconv.Atoi(m[6])
	s, _ := strconv.Atoi(m[7])
	ms, _ := strconv.Atoi(m[8])

	d := float64(h*3600+mm*60+s) + float64(ms)/1000
	return &d
}
