package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

func resetServeFlags() {
	serveWatch, serveMCP, serveMCPHTTP = false, false, ""
}

// executeServe runs serve until every loop has started, then cancels it.
func executeServe(t *testing.T, ts *testServices, args ...string) error {
	t.Helper()
	defer resetServeFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// cobra only hands the root context to subcommands without one.
	serveCmd.SetContext(ctx)
	defer rootCmd.SetContext(context.Background())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"serve"}, args...))
	defer rootCmd.SetArgs(nil)

	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()

	select {
	case <-ts.loop.started:
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator loop did not start")
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
		return nil
	}
}

func TestServeCmd_RunsUntilCancelled(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	require.NoError(t, executeServe(t, ts))

	<-ts.scheduler.started
	select {
	case <-ts.watcher.started:
		t.Fatal("watcher started without --watch")
	default:
	}
}

func TestServeCmd_Watch(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	require.NoError(t, executeServe(t, ts, "--watch"))

	select {
	case <-ts.watcher.started:
	case <-time.After(time.Second):
		t.Fatal("watcher not started")
	}
}

func TestServeCmd_NotConfigured(t *testing.T) {
	defer resetServeFlags()

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinator not configured")
}

func TestServeCmd_WatchWithoutWatcher(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetServeFlags()
	daemon.Watcher = nil

	_, err := execute(t, "serve", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watcher not configured")

	select {
	case <-ts.loop.started:
		t.Fatal("coordinator started")
	default:
	}
}

func TestServeCmd_MCPFlagsExclusive(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer resetServeFlags()

	_, err := execute(t, "serve", "--mcp", "--mcp-http", "localhost:0")
	require.Error(t, err)
}

func TestStatusLine(t *testing.T) {
	line := statusLine(domain.CoordinatorStatus{
		QueueDepth: 4, InFlightProcess: 1, MaxWorkers: 2, InFlightOther: 1,
		ProcessCompleted: 10, ProcessFailed: 2, Pool: domain.PoolStateReady, RestartPending: true,
	})

	assert.Equal(t, "queue 4 | processing 1/2 | maintenance 1 | done 10 | failed 2 | pool ready (restart pending)", line)
}

func TestProgress_NonTerminalPrintsLines(t *testing.T) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	p := newProgress(cmd)
	assert.False(t, p.tty)
	p.Update("one")
	p.Update("two")
	p.Done()

	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestProgress_TerminalRedraws(t *testing.T) {
	buf := new(bytes.Buffer)
	p := &progress{w: buf, tty: true, width: 12}

	p.Update("first")
	p.Update("a much longer line")
	p.Done()

	assert.Equal(t, "\rfirst      \ra much long\n", buf.String())
}
