// Package extractors provides the format extractors that turn source files
// into page-indexed text, and a registry that selects one by file type.
//
// Each sub-package handles one format:
//
//   - pdf: one page per PDF page
//   - plaintext: 300-word pages
//   - html: single block, generic or Pipermail layout
//   - srt: single block of cue dialogue plus parsed cues and duration
//   - eml: single block of the message body plus header metadata
//
// Extractors degrade to best-effort text on malformed input. They fail only
// when the file cannot be read, wrapping domain.ErrExtraction.
package extractors
