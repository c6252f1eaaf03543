package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func TestDocumentCmd_Use(t *testing.T) {
	assert.Equal(t, "document", documentCmd.Use)
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	subcommands := documentCmd.Commands()
	names := make([]string, len(subcommands))
	for i, cmd := range subcommands {
		names[i] = cmd.Name()
	}

	assert.ElementsMatch(t, []string{"list", "get", "text", "reset", "errors"}, names)
}

func TestDocumentListCmd_ListsAll(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "notes/meeting.txt")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "Indexed")
}

func TestDocumentListCmd_StatusFilter(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer func() { documentStatus = "" }()

	out, err := execute(t, "document", "list", "--status", "error")

	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, ts.documents.listStatus)
	assert.Contains(t, out, "report.pdf")
	assert.NotContains(t, out, "notes/meeting.txt")
}

func TestDocumentListCmd_EmptyList(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.docs = nil

	out, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No documents found.")
}

func TestDocumentListCmd_ServiceNotConfigured(t *testing.T) {
	_, err := execute(t, "document", "list")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "document service not configured")
}

func TestDocumentGetCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "document", "get")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestDocumentGetCmd_IndexedShowsEntities(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "get", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Path:     notes/meeting.txt")
	assert.Contains(t, out, "Entities (1):")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Alice --[met Bob in]--> Paris")
}

func TestDocumentGetCmd_FailedShowsMessage(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "get", "2")

	require.NoError(t, err)
	assert.Contains(t, out, "Message:  extraction failed: corrupt file")
	assert.NotContains(t, out, "Entities")
}

func TestDocumentGetCmd_Errors(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "document", "get", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = execute(t, "document", "get", "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentTextCmd_PageBounds(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer func() { textStartPage, textEndPage = 0, 0 }()
	ts.documents.text = "page two text"

	out, err := execute(t, "document", "text", "report.pdf", "--start", "2", "--end", "3")

	require.NoError(t, err)
	assert.Contains(t, out, "page two text")
	require.NotNil(t, ts.documents.start)
	require.NotNil(t, ts.documents.end)
	assert.Equal(t, 2, *ts.documents.start)
	assert.Equal(t, 3, *ts.documents.end)
}

func TestDocumentTextCmd_NoBounds(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.text = "all of it"

	out, err := execute(t, "document", "text", "notes/meeting.txt")

	require.NoError(t, err)
	assert.Contains(t, out, "all of it")
	assert.Nil(t, ts.documents.start)
	assert.Nil(t, ts.documents.end)
}

func TestDocumentTextCmd_UnknownPath(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "document", "text", "missing.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentResetCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "reset", "2")

	require.NoError(t, err)
	assert.Equal(t, int64(2), ts.documents.resetID)
	assert.Contains(t, out, "Document 2 reset to New.")
}

func TestDocumentResetCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.err = errors.New("database locked")

	_, err := execute(t, "document", "reset", "2")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset document")
	assert.Contains(t, err.Error(), "database locked")
}

func TestDocumentErrorsCmd_Lists(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "document", "errors")

	require.NoError(t, err)
	assert.Contains(t, out, "[2] report.pdf")
	assert.Contains(t, out, "extraction failed: corrupt file")
	assert.NotContains(t, out, "meeting.txt")
}

func TestDocumentErrorsCmd_Reset(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() { errorsReset = false }()

	out, err := execute(t, "document", "errors", "--reset")

	require.NoError(t, err)
	assert.Contains(t, out, "1 documents reset to New.")
}

func TestDocumentErrorsCmd_NoneFailed(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.documents.docs = ts.documents.docs[:1]

	out, err := execute(t, "document", "errors")

	require.NoError(t, err)
	assert.Contains(t, out, "No failed documents.")
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, domain.StatusIndexed, parseStatus("indexed"))
	assert.Equal(t, domain.StatusNew, parseStatus("NEW"))
	assert.Equal(t, domain.Status(""), parseStatus(""))
	assert.Equal(t, domain.Status("bogus"), parseStatus("bogus"))
}
