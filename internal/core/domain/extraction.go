package domain

import (
	"sort"
	"time"
)

// Cue is a single subtitle cue.
type Cue struct {
	// Sequence is the cue number as written in the file.
	Sequence int

	// Timestamp is the raw "start --> end" line.
	Timestamp string

	// Dialogue is the cue text with lines joined by single spaces.
	Dialogue string
}

// EmailMetadata holds the headers of a mail document.
type EmailMetadata struct {
	From    string
	To      string
	Cc      string
	Subject string

	// SentAt is nil when the Date header is missing or unparsable.
	SentAt *time.Time
}

// Extraction is the output of a format extractor.
type Extraction struct {
	// Pages maps page number to text. Page numbers start at 1.
	Pages map[int]string

	// PageCount is the logical page count (cue count for subtitles).
	PageCount int

	// Duration is the media duration in seconds, subtitles only.
	Duration *float64

	// Cues holds parsed subtitle cues.
	Cues []Cue

	// Email holds parsed mail headers.
	Email *EmailMetadata
}

// SortedPages returns the pages ordered by page number.
func (e *Extraction) SortedPages() []Page {
	nums := make([]int, 0, len(e.Pages))
	for n := range e.Pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	pages := make([]Page, 0, len(nums))
	for _, n := range nums {
		pages = append(pages, Page{PageNumber: n, Text: e.Pages[n]})
	}
	return pages
}

// HTMLParsingMode selects how markup documents are reduced to text.
type HTMLParsingMode string

// Available HTML parsing modes.
const (
	// HTMLModeGeneric keeps block-level separation of any HTML page.
	HTMLModeGeneric HTMLParsingMode = "generic"

	// HTMLModePipermail extracts list, subject, author and body of a
	// Pipermail archive page.
	HTMLModePipermail HTMLParsingMode = "pipermail"
)

// IsValid returns true if the mode is recognised.
func (m HTMLParsingMode) IsValid() bool {
	return m == HTMLModeGeneric || m == HTMLModePipermail
}

// ExtractOptions tunes extraction.
type ExtractOptions struct {
	HTMLMode HTMLParsingMode
}
