package services

import (
	"context"
	"crypto/md5" //nolint:gosec // change detection, not security
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// hashBufferSize is the read size used when hashing files.
const hashBufferSize = 64 * 1024

// DiscoveryService registers new and changed files under the documents
// directory. Unchanged files are left as they are.
type DiscoveryService struct {
	docs         driven.DocumentStore
	documentsDir string
}

var _ driving.Discoverer = (*DiscoveryService)(nil)

// NewDiscoveryService creates a discovery service rooted at documentsDir.
func NewDiscoveryService(docs driven.DocumentStore, documentsDir string) *DiscoveryService {
	return &DiscoveryService{docs: docs, documentsDir: documentsDir}
}

// Discover walks the documents directory once, skipping hidden entries. A
// file seen for the first time, or whose content hash changed, is (re)set
// to New.
func (s *DiscoveryService) Discover(ctx context.Context) (*domain.DiscoveryReport, error) {
	if err := os.MkdirAll(s.documentsDir, 0700); err != nil {
		return nil, fmt.Errorf("creating documents directory: %w", err)
	}

	known, err := s.docs.FileHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading known files: %w", err)
	}

	report := &domain.DiscoveryReport{}
	err = filepath.WalkDir(s.documentsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logger.Warn("discovery: skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != s.documentsDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fileType := domain.FileTypeFromPath(path)
		if fileType == "" {
			return nil
		}
		report.Scanned++

		if err := s.register(ctx, path, fileType, known, report); err != nil {
			report.Failed++
			logger.Warn("discovery: %v", err)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("scanning %s: %w", s.documentsDir, err)
	}

	logger.Debug("discovery: scanned %d files, %d new, %d modified, %d unchanged, %d failed",
		report.Scanned, report.Registered, report.Modified, report.Unchanged, report.Failed)
	return report, nil
}

// register hashes one file and upserts it when new or changed.
func (s *DiscoveryService) register(
	ctx context.Context,
	path string,
	fileType domain.FileType,
	known map[string]string,
	report *domain.DiscoveryReport,
) error {
	rel, err := filepath.Rel(s.documentsDir, path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	rel = filepath.ToSlash(rel)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}

	hash, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", rel, err)
	}

	previous, seen := known[rel]
	if seen && previous == hash {
		report.Unchanged++
		return nil
	}

	message := domain.MsgReadyForProcessing
	if seen {
		message = domain.MsgFileModified
	}

	id, err := s.docs.UpsertDocument(ctx, domain.DocumentFile{
		RelativePath: rel,
		FileHash:     hash,
		FileType:     fileType,
		SizeBytes:    info.Size(),
		ModifiedAt:   info.ModTime(),
	}, message)
	if err != nil {
		return err
	}

	if seen {
		report.Modified++
	} else {
		report.Registered++
	}
	report.DocIDs = append(report.DocIDs, id)
	return nil
}

// hashFile returns the md5 hex digest of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // change detection, not security
	if _, err := io.CopyBuffer(h, f, make([]byte, hashBufferSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
