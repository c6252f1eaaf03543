package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.pages = []domain.Page{{DocID: 1, PageNumber: 2, Text: "Alice met\n\nBob in Paris."}}

	out, err := execute(t, "search", "Paris")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] document 1, page 2")
	assert.Contains(t, out, "Alice met Bob in Paris.")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer func() { searchJSON = false }()
	ts.documents.pages = []domain.Page{{DocID: 1, PageNumber: 2, Text: "Paris"}}

	out, err := execute(t, "search", "--json", "Paris")

	require.NoError(t, err)
	assert.Contains(t, out, `"DocID": 1`)
	assert.Contains(t, out, `"PageNumber": 2`)
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	_, err := execute(t, "search", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "document service not configured")
}

func TestSearchCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.err = errors.New("fts5: syntax error")

	_, err := execute(t, "search", "AND")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	require.NoError(t, outputSearchTable(cmd, nil))
	assert.Contains(t, buf.String(), "No results found.")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("  a\n b\t\tc "))
	assert.Empty(t, snippet(" \n "))

	long := strings.Repeat("é", snippetLength+10)
	got := snippet(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, snippetLength+3, len([]rune(got)))
}

func TestEntitiesCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.browse = []domain.BrowseEntry{
		{EntityID: 1, Text: "Alice", Label: domain.LabelPerson, DocumentCount: 3, AppearanceCount: 7},
	}

	out, err := execute(t, "entities", "person")

	require.NoError(t, err)
	assert.Equal(t, "PERSON", ts.documents.browseLabel)
	assert.Regexp(t, `PERSON\s+3\s+7\s+Alice`, out)
}

func TestEntitiesCmd_Empty(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "entities")

	require.NoError(t, err)
	assert.Equal(t, "", ts.documents.browseLabel)
	assert.Contains(t, out, "No entities found.")
}
