package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/logger"
)

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	SetVersion("test-version-1.0.0")
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "redleaf version test-version-1.0.0")
}

func TestVersionCmd_Verbose(t *testing.T) {
	defer func() {
		verbose = false
		logger.SetVerbose(false)
	}()

	out, err := execute(t, "version", "--verbose")

	require.NoError(t, err)
	assert.Contains(t, out, "redleaf version "+version)
	assert.Contains(t, out, runtime.Version())
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	_, err := execute(t, "version", "extra")
	assert.Error(t, err)
}
