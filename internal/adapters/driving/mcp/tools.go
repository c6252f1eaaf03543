package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// Default result limits for list-style tools.
const (
	defaultSearchLimit   = 10
	defaultEntitiesLimit = 50
)

// EnqueueInput is the input schema for the enqueue tool.
type EnqueueInput struct {
	Kind  string `json:"kind" jsonschema:"task kind: process, discover or cache"`
	DocID int64  `json:"doc_id,omitempty" jsonschema:"document id, required for process tasks"`
}

// EnqueueOutput is the output schema for the enqueue tool.
type EnqueueOutput struct {
	Key        string `json:"key"`
	QueueDepth int    `json:"queue_depth"`
}

// StatusInput is the (empty) input schema for the status tool.
type StatusInput struct{}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Running          bool           `json:"running"`
	QueueDepth       int            `json:"queue_depth"`
	InFlightProcess  int            `json:"in_flight_process"`
	InFlightOther    int            `json:"in_flight_other"`
	MaxWorkers       int            `json:"max_workers"`
	Pool             string         `json:"pool"`
	RestartPending   bool           `json:"restart_pending"`
	PoolRestarts     int            `json:"pool_restarts"`
	ProcessCompleted int            `json:"process_completed"`
	ProcessFailed    int            `json:"process_failed"`
	LastError        string         `json:"last_error,omitempty"`
	Documents        map[string]int `json:"documents"`
}

// ExtractTextInput is the input schema for the extract_text tool.
type ExtractTextInput struct {
	Path      string `json:"path" jsonschema:"document path relative to the documents directory"`
	StartPage *int   `json:"start_page,omitempty" jsonschema:"first page to return (1-based)"`
	EndPage   *int   `json:"end_page,omitempty" jsonschema:"last page to return, inclusive"`
}

// ExtractTextOutput is the output schema for the extract_text tool.
type ExtractTextOutput struct {
	Path     string `json:"path"`
	FileType string `json:"file_type"`
	Text     string `json:"text"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"full-text query over indexed pages"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single matching page.
type SearchResultOutput struct {
	DocumentID int64  `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// EntitiesInput is the input schema for the entities tool.
type EntitiesInput struct {
	Label string `json:"label,omitempty" jsonschema:"entity label filter such as PERSON or GPE"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of entities (default 50)"`
}

// EntitiesOutput is the output schema for the entities tool.
type EntitiesOutput struct {
	Entities []EntityOutput `json:"entities"`
	Count    int            `json:"count"`
}

// EntityOutput is one row of the browse cache.
type EntityOutput struct {
	Text        string `json:"text"`
	Label       string `json:"label"`
	Documents   int    `json:"documents"`
	Appearances int    `json:"appearances"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "enqueue",
		Description: "Queue a process, discover or cache task",
	}, s.handleEnqueue)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Report coordinator queue and worker pool state",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_text",
		Description: "Return the extracted text of a document, optionally limited to a page range",
	}, s.handleExtractText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search across indexed pages",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "entities",
		Description: "List the most frequent entities across indexed documents",
	}, s.handleEntities)
}

func (s *Server) handleEnqueue(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EnqueueInput,
) (*mcp.CallToolResult, EnqueueOutput, error) {
	task, err := domain.ParseTask(domain.TaskKind(strings.ToLower(input.Kind)), input.DocID)
	if err != nil {
		return nil, EnqueueOutput{}, err
	}
	if err := s.ports.Coordinator.Enqueue(ctx, task); err != nil {
		return nil, EnqueueOutput{}, fmt.Errorf("enqueue %s: %w", task.Key(), err)
	}
	return nil, EnqueueOutput{Key: task.Key(), QueueDepth: s.ports.Coordinator.QueueDepth()}, nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	st := s.ports.Coordinator.Status()
	counts, err := s.ports.Document.Counts(ctx)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("counting documents: %w", err)
	}

	output := StatusOutput{
		Running:          st.Running,
		QueueDepth:       st.QueueDepth,
		InFlightProcess:  st.InFlightProcess,
		InFlightOther:    st.InFlightOther,
		MaxWorkers:       st.MaxWorkers,
		Pool:             string(st.Pool),
		RestartPending:   st.RestartPending,
		PoolRestarts:     st.PoolRestarts,
		ProcessCompleted: st.ProcessCompleted,
		ProcessFailed:    st.ProcessFailed,
		LastError:        st.LastError,
		Documents:        make(map[string]int, len(counts)),
	}
	for _, c := range counts {
		output.Documents[string(c.Status)] = c.Count
	}
	return nil, output, nil
}

func (s *Server) handleExtractText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExtractTextInput,
) (*mcp.CallToolResult, ExtractTextOutput, error) {
	doc, err := s.ports.Document.GetByPath(ctx, input.Path)
	if err != nil {
		return nil, ExtractTextOutput{}, fmt.Errorf("document %q: %w", input.Path, err)
	}

	text, err := s.ports.Document.ExtractTextForCopying(ctx, doc.RelativePath, doc.FileType, input.StartPage, input.EndPage)
	if err != nil {
		return nil, ExtractTextOutput{}, fmt.Errorf("extracting %q: %w", input.Path, err)
	}
	return nil, ExtractTextOutput{
		Path:     doc.RelativePath,
		FileType: string(doc.FileType),
		Text:     text,
	}, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	pages, err := s.ports.Document.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(pages)),
		Count:   len(pages),
	}
	for i, p := range pages {
		output.Results[i] = SearchResultOutput{
			DocumentID: p.DocID,
			PageNumber: p.PageNumber,
			Text:       p.Text,
		}
	}
	return nil, output, nil
}

func (s *Server) handleEntities(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EntitiesInput,
) (*mcp.CallToolResult, EntitiesOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultEntitiesLimit
	}

	entries, err := s.ports.Document.Browse(ctx, input.Label, limit)
	if err != nil {
		return nil, EntitiesOutput{}, err
	}

	output := EntitiesOutput{
		Entities: make([]EntityOutput, len(entries)),
		Count:    len(entries),
	}
	for i, e := range entries {
		output.Entities[i] = EntityOutput{
			Text:        e.Text,
			Label:       e.Label,
			Documents:   e.DocumentCount,
			Appearances: e.AppearanceCount,
		}
	}
	return nil, output, nil
}
