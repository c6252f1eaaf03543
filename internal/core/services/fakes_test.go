package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/extractors"
)

// testEntities is the vocabulary recognised by fakeNLP.
var testEntities = map[string]string{
	"Alice": domain.LabelPerson,
	"Bob":   domain.LabelPerson,
	"Carol": domain.LabelPerson,
	"Paris": domain.LabelGPE,
	"Rome":  domain.LabelGPE,
	"ACME":  domain.LabelOrg,
}

// fakeNLP splits sentences on '.' and recognises testEntities.
type fakeNLP struct {
	failOn  string
	panicOn string
	block   <-chan struct{}

	calls  atomic.Int32
	closed atomic.Bool
}

func (f *fakeNLP) Analyze(ctx context.Context, text string) (*domain.Analysis, error) {
	f.calls.Add(1)

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicOn != "" && strings.Contains(text, f.panicOn) {
		panic("fake NLP panic")
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("nlp exploded")
	}

	a := &domain.Analysis{}
	for start := 0; start < len(text); {
		end := len(text)
		if i := strings.IndexByte(text[start:], '.'); i >= 0 {
			end = start + i + 1
		}

		sent := domain.Sentence{Start: start, End: end}
		phrase := strings.TrimSpace(text[start:end])
		for name, label := range testEntities {
			for off := start; off < end; {
				i := strings.Index(text[off:end], name)
				if i < 0 {
					break
				}
				s := off + i
				sent.Mentions = append(sent.Mentions, domain.Mention{
					Text: name, Label: label, Start: s, End: s + len(name), Context: phrase,
				})
				off = s + len(name)
			}
		}
		sort.Slice(sent.Mentions, func(i, j int) bool { return sent.Mentions[i].Start < sent.Mentions[j].Start })

		a.Sentences = append(a.Sentences, sent)
		start = end
	}
	return a, nil
}

func (f *fakeNLP) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeLoader hands out one fakeNLP per Load call.
type fakeLoader struct {
	mu      sync.Mutex
	loads   int
	err     error
	failOn  string
	panicOn string
	block   <-chan struct{}
	loaded  []*fakeNLP
}

func (l *fakeLoader) Load(_ context.Context, opts driven.NLPLoadOptions) (driven.NLPCapability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loads++
	if l.err != nil {
		return nil, l.err
	}

	nlp := &fakeNLP{failOn: l.failOn, panicOn: l.panicOn, block: l.block}
	l.loaded = append(l.loaded, nlp)
	if opts.UseGPU {
		return nlp, domain.ErrGPUUnavailable
	}
	return nlp, nil
}

func (l *fakeLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// fakeEmbedder returns a two-dimensional vector per text.
type fakeEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return f.err }
func (f *fakeEmbedder) Close() error { return nil }

// testEnv is a temp-dir store with a documents directory.
type testEnv struct {
	store   *sqlite.Store
	docsDir string
	dataDir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	env := &testEnv{
		docsDir: filepath.Join(root, "documents"),
		dataDir: filepath.Join(root, "data"),
	}
	require.NoError(t, os.MkdirAll(env.docsDir, 0700))

	store, err := sqlite.NewStore(env.dataDir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	env.store = store

	return env
}

// writeDoc writes a file under the documents directory.
func (e *testEnv) writeDoc(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.docsDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// addDoc writes a file and registers it as New.
func (e *testEnv) addDoc(t *testing.T, rel, content string) int64 {
	t.Helper()
	e.writeDoc(t, rel, content)

	id, err := e.store.DocumentStore().UpsertDocument(context.Background(), domain.DocumentFile{
		RelativePath: rel,
		FileHash:     "hash-" + rel,
		FileType:     domain.FileTypeFromPath(rel),
		SizeBytes:    int64(len(content)),
	}, domain.MsgReadyForProcessing)
	require.NoError(t, err)
	return id
}

func (e *testEnv) status(t *testing.T, id int64) (domain.Status, string) {
	t.Helper()
	doc, err := e.store.DocumentStore().GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc.Status, doc.StatusMessage
}

func (e *testEnv) processor(embedder driven.EmbeddingService) *Processor {
	return NewProcessor(e.store.DocumentStore(), e.store.IndexStore(),
		extractors.NewDefaultRegistry(), embedder, e.docsDir)
}

func workerState(nlp driven.NLPCapability) *WorkerState {
	return &WorkerState{NLP: nlp, Settings: domain.DefaultProcessingSettings()}
}

func removeDoc(e *testEnv, rel string) error {
	return os.Remove(filepath.Join(e.docsDir, filepath.FromSlash(rel)))
}
