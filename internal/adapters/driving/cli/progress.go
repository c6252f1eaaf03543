package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// progress writes a status line. On a terminal the line is redrawn in place
// with a carriage return; elsewhere each update is a new line.
type progress struct {
	w       io.Writer
	tty     bool
	width   int
	printed bool
}

func newProgress(cmd *cobra.Command) *progress {
	p := &progress{w: cmd.OutOrStdout(), width: 80}
	if f, ok := p.w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

// Update replaces the current status line.
func (p *progress) Update(line string) {
	if !p.tty {
		fmt.Fprintln(p.w, line)
		return
	}
	if r := []rune(line); len(r) >= p.width {
		line = string(r[:p.width-1])
	}
	fmt.Fprintf(p.w, "\r%s%s", line, strings.Repeat(" ", max(p.width-1-len([]rune(line)), 0)))
	p.printed = true
}

// Done ends the status line so following output starts on a fresh line.
func (p *progress) Done() {
	if p.tty && p.printed {
		fmt.Fprintln(p.w)
		p.printed = false
	}
}

// statusLine renders a coordinator snapshot on one line.
func statusLine(st domain.CoordinatorStatus) string {
	line := fmt.Sprintf("queue %d | processing %d/%d | maintenance %d | done %d | failed %d | pool %s",
		st.QueueDepth, st.InFlightProcess, st.MaxWorkers, st.InFlightOther,
		st.ProcessCompleted, st.ProcessFailed, st.Pool)
	if st.RestartPending {
		line += " (restart pending)"
	}
	return line
}
