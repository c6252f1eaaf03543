package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reset restores package state after a test.
func reset(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
		SetLogFile("")
	})
}

func TestSetVerbose(t *testing.T) {
	reset(t)

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	assert.Equal(t, "[DEBUG] test message arg\n", buf.String())
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	Section("Hidden")
	assert.Zero(t, buf.Len())

	SetVerbose(true)
	Section("Test Section")
	assert.Equal(t, "\n=== Test Section ===\n", buf.String())
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		want string
	}{
		{"info", Info, "[INFO] message 42\n"},
		{"warn", Warn, "[WARN] message 42\n"},
		{"error", Error, "[ERROR] message 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset(t)

			var buf bytes.Buffer
			SetOutput(&buf)

			tt.log("message %d", 42)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSetLogFile(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	path := filepath.Join(t.TempDir(), "redleaf.log")
	SetLogFile(path)

	Info("to both %s", "sinks")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to both sinks"`)
	assert.Contains(t, string(data), `"level":"info"`)
	assert.Equal(t, "[INFO] to both sinks\n", buf.String())
}

func TestConcurrentAccess(t *testing.T) {
	reset(t)

	var buf bytes.Buffer
	SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(true)
			Debug("concurrent %d", i)
			IsVerbose()
			SetVerbose(false)
		}()
	}
	wg.Wait()
}
