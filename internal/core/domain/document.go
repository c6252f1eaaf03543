package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType is the declared type of a source file.
type FileType string

// Supported file types.
const (
	FileTypePDF  FileType = "PDF"
	FileTypeTXT  FileType = "TXT"
	FileTypeHTML FileType = "HTML"
	FileTypeSRT  FileType = "SRT"
	FileTypeEML  FileType = "EML"
)

// AllFileTypes lists every supported file type.
var AllFileTypes = []FileType{FileTypePDF, FileTypeTXT, FileTypeHTML, FileTypeSRT, FileTypeEML}

// IsValid returns true if the file type is supported.
func (t FileType) IsValid() bool {
	switch t {
	case FileTypePDF, FileTypeTXT, FileTypeHTML, FileTypeSRT, FileTypeEML:
		return true
	default:
		return false
	}
}

// IsSingleBlock returns true for formats whose text is stored as one page.
// Page bounds are ignored when reading these back for display.
func (t FileType) IsSingleBlock() bool {
	return t == FileTypeHTML || t == FileTypeSRT || t == FileTypeEML
}

// FileTypeFromPath derives the file type from a path's extension.
// Returns an empty FileType for unsupported extensions.
func FileTypeFromPath(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FileTypePDF
	case ".txt":
		return FileTypeTXT
	case ".html", ".htm":
		return FileTypeHTML
	case ".srt":
		return FileTypeSRT
	case ".eml":
		return FileTypeEML
	default:
		return ""
	}
}

// Status is the lifecycle state of a document.
type Status string

// Document lifecycle states.
//
// New -> Queued -> Indexing -> Indexed | Error. Error is not terminal: a changed
// hash on discovery or an explicit reset moves the document back to New.
const (
	StatusNew      Status = "New"
	StatusQueued   Status = "Queued"
	StatusIndexing Status = "Indexing"
	StatusIndexed  Status = "Indexed"
	StatusError    Status = "Error"
)

// IsValid returns true if the status is recognised.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusQueued, StatusIndexing, StatusIndexed, StatusError:
		return true
	default:
		return false
	}
}

// MaxStatusMessageLength bounds the diagnostic stored with a document.
const MaxStatusMessageLength = 1000

// TruncateStatusMessage shortens msg to MaxStatusMessageLength characters.
func TruncateStatusMessage(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxStatusMessageLength {
		return msg
	}
	return string(r[:MaxStatusMessageLength])
}

// Document is a registered source file.
// It is the root of a document's lifecycle; all derived rows belong to it.
type Document struct {
	// ID is the stable integer identifier.
	ID int64

	// RelativePath is the path relative to the documents directory.
	// It is unique across the registry.
	RelativePath string

	// FileHash is the md5 hex digest of the file contents.
	FileHash string

	// FileType is the declared type.
	FileType FileType

	// Status is the lifecycle state.
	Status Status

	// StatusMessage is a human-readable diagnostic for the current status.
	StatusMessage string

	// PageCount is the number of pages (or cues for subtitles).
	PageCount int

	// FileSizeBytes is the size of the file at discovery time.
	FileSizeBytes int64

	// DurationSeconds is the media duration for subtitle documents.
	DurationSeconds *float64

	// AddedAt is when the document was first registered.
	AddedAt time.Time

	// FileModifiedAt is the file's modification time at discovery.
	FileModifiedAt time.Time

	// ProcessedAt is when the document was last indexed.
	ProcessedAt time.Time
}

// Page is one addressable unit of extracted text.
type Page struct {
	DocID      int64
	PageNumber int
	Text       string
}

// DocumentFile describes a file found on disk during discovery.
type DocumentFile struct {
	RelativePath string
	FileHash     string
	FileType     FileType
	SizeBytes    int64
	ModifiedAt   time.Time
}

// StatusCount is the number of documents in a given status.
type StatusCount struct {
	Status Status
	Count  int
}
