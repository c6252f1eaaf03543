package cli

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// mockCoordinator records enqueued tasks.
type mockCoordinator struct {
	mu     sync.Mutex
	tasks  []domain.Task
	status domain.CoordinatorStatus
	err    error
}

func (m *mockCoordinator) Enqueue(_ context.Context, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockCoordinator) QueueDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *mockCoordinator) Status() domain.CoordinatorStatus { return m.status }

func (m *mockCoordinator) RequestRestart() {}

// mockLoop blocks in Start until its context is cancelled.
type mockLoop struct {
	started chan struct{}
	once    sync.Once
}

func newMockLoop() *mockLoop {
	return &mockLoop{started: make(chan struct{})}
}

func (m *mockLoop) Start(ctx context.Context) error {
	m.once.Do(func() { close(m.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockLoop) Stop() error { return nil }

func (m *mockLoop) Run(ctx context.Context) error { return m.Start(ctx) }

type mockDiscoverer struct {
	report *domain.DiscoveryReport
	err    error
}

func (m *mockDiscoverer) Discover(_ context.Context) (*domain.DiscoveryReport, error) {
	return m.report, m.err
}

type mockCache struct {
	rows int
	err  error
}

func (m *mockCache) Rebuild(_ context.Context) (int, error) { return m.rows, m.err }

type mockProcessor struct {
	got int64
	err error
}

func (m *mockProcessor) ProcessDocument(_ context.Context, id int64) (*domain.ProcessResult, error) {
	m.got = id
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ProcessResult{DocID: id, Pages: 2, Entities: 3, Appearances: 4, Relationships: 1, Chunks: 4,
		Duration: 1500 * time.Millisecond}, nil
}

type mockPipeline struct {
	opts   domain.PipelineOptions
	report *domain.PipelineReport
	err    error
}

func (m *mockPipeline) Run(_ context.Context, opts domain.PipelineOptions) (*domain.PipelineReport, error) {
	m.opts = opts
	return m.report, m.err
}

// mockDocumentService serves a fixed set of documents.
type mockDocumentService struct {
	docs     []domain.Document
	entities []domain.Entity
	rels     []domain.Relationship
	pages    []domain.Page
	browse   []domain.BrowseEntry
	text     string
	err      error

	resetID     int64
	start, end  *int
	browseLabel string
	listStatus  domain.Status
}

func (m *mockDocumentService) List(_ context.Context, status domain.Status) ([]domain.Document, error) {
	m.listStatus = status
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Document
	for _, d := range m.docs {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) GetByPath(_ context.Context, rel string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.docs {
		if m.docs[i].RelativePath == rel {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) Counts(_ context.Context) ([]domain.StatusCount, error) {
	return nil, m.err
}

func (m *mockDocumentService) ExtractTextForCopying(
	_ context.Context, _ string, _ domain.FileType, start, end *int,
) (string, error) {
	m.start, m.end = start, end
	return m.text, m.err
}

func (m *mockDocumentService) Entities(_ context.Context, _ int64) ([]domain.Entity, error) {
	return m.entities, m.err
}

func (m *mockDocumentService) Relationships(_ context.Context, _ int64) ([]domain.Relationship, error) {
	return m.rels, m.err
}

func (m *mockDocumentService) Search(_ context.Context, _ string, _ int) ([]domain.Page, error) {
	return m.pages, m.err
}

func (m *mockDocumentService) Browse(_ context.Context, label string, _ int) ([]domain.BrowseEntry, error) {
	m.browseLabel = label
	return m.browse, m.err
}

func (m *mockDocumentService) Reset(_ context.Context, id int64) error {
	m.resetID = id
	return m.err
}

func (m *mockDocumentService) ResetErrors(_ context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, d := range m.docs {
		if d.Status == domain.StatusError {
			n++
		}
	}
	return n, nil
}

type mockSettingsService struct {
	settings domain.ProcessingSettings
	set      map[string]string
	err      error
}

func (m *mockSettingsService) Get(_ context.Context) (domain.ProcessingSettings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) Update(_ context.Context, s domain.ProcessingSettings) error {
	m.settings = s
	return m.err
}

func (m *mockSettingsService) Set(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

// mockConfig is an in-memory ConfigEditor.
type mockConfig struct {
	data map[string]any
	err  error
}

func (m *mockConfig) Get(key string) (any, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockConfig) Set(key string, value any) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mockConfig) Delete(key string) error {
	delete(m.data, key)
	return m.err
}

func (m *mockConfig) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *mockConfig) Path() string { return "/home/test/.redleaf/config.toml" }

// mockHistory serves fixed triggers and runs.
type mockHistory struct {
	triggers []domain.ScheduledTask
	runs     map[string][]domain.TaskResult
	err      error
}

func (m *mockHistory) Triggers(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.triggers, m.err
}

func (m *mockHistory) Runs(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	runs := m.runs[taskID]
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	coordinator *mockCoordinator
	discoverer  *mockDiscoverer
	cache       *mockCache
	processor   *mockProcessor
	pipeline    *mockPipeline
	documents   *mockDocumentService
	settings    *mockSettingsService
	config      *mockConfig
	history     *mockHistory
	loop        *mockLoop
	scheduler   *mockLoop
	watcher     *mockLoop
}

func testDocuments() []domain.Document {
	return []domain.Document{
		{ID: 1, RelativePath: "notes/meeting.txt", FileType: domain.FileTypeTXT, Status: domain.StatusIndexed,
			StatusMessage: domain.MsgIndexed, PageCount: 1, FileHash: "abc"},
		{ID: 2, RelativePath: "report.pdf", FileType: domain.FileTypePDF, Status: domain.StatusError,
			StatusMessage: "extraction failed: corrupt file", PageCount: 0},
		{ID: 3, RelativePath: "new.html", FileType: domain.FileTypeHTML, Status: domain.StatusNew},
	}
}

// setupTestServices installs mocks and returns them with a restore function.
func setupTestServices() (*testServices, func()) {
	status := domain.CoordinatorStatus{Running: true, MaxWorkers: 2, Pool: domain.PoolStateReady}
	report := &domain.DiscoveryReport{Scanned: 5, Registered: 2, Modified: 1, Unchanged: 2, DocIDs: []int64{4, 5, 1}}
	docs := &mockDocumentService{
		docs:     testDocuments(),
		entities: []domain.Entity{{ID: 1, Text: "Alice", Label: domain.LabelPerson}},
		rels: []domain.Relationship{{
			Subject:    domain.EntityKey{Text: "Alice", Label: domain.LabelPerson},
			Object:     domain.EntityKey{Text: "Paris", Label: domain.LabelGPE},
			Phrase:     "met Bob in",
			PageNumber: 1,
		}},
	}

	ts := &testServices{
		coordinator: &mockCoordinator{status: status},
		discoverer:  &mockDiscoverer{report: report},
		cache:       &mockCache{rows: 42},
		processor:   &mockProcessor{},
		pipeline:    &mockPipeline{},
		documents:   docs,
		settings:    &mockSettingsService{settings: domain.DefaultProcessingSettings()},
		config:      &mockConfig{data: map[string]any{"batch.workers": int64(4)}},
		history:     &mockHistory{runs: make(map[string][]domain.TaskResult)},
		loop:        newMockLoop(),
		scheduler:   newMockLoop(),
		watcher:     newMockLoop(),
	}

	cfg := domain.DefaultAppConfig()
	cfg.DocumentsDir = "/tmp/docs"
	cfg.DataDir = "/tmp/data"

	Configure(Services{
		Coordinator: ts.coordinator,
		Discoverer:  ts.discoverer,
		Cache:       ts.cache,
		Processor:   ts.processor,
		Pipeline:    ts.pipeline,
		Documents:   ts.documents,
		Settings:    ts.settings,
		History:     ts.history,
		Config:      ts.config,
		ConfigKeys:  []string{"batch.workers", "embedding.api_key", "embedding.provider"},
		Daemon:      Daemon{Coordinator: ts.loop, Scheduler: ts.scheduler, Watcher: ts.watcher},
		AppConfig:   cfg,
	})

	return ts, func() { Configure(Services{AppConfig: domain.DefaultAppConfig()}) }
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "redleaf", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"serve", "discover", "process", "cache", "pipeline", "document",
		"entities", "search", "settings", "config", "history", "version",
	} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	if assert.NotNil(t, flag) {
		assert.Equal(t, "v", flag.Shorthand)
	}
}

func TestParseDocID(t *testing.T) {
	id, err := parseDocID("12")
	assert.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		_, err := parseDocID(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, ignoreCanceled(boom))
}
