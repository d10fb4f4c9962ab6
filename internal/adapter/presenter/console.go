package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/Cheese-ChessFront/internal/orchestrator"
)

// Console prints status changes for headless runs.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console { return &Console{w: w} }

func (c *Console) Publish(u orchestrator.Update) {
	if u.Status == nil {
		return
	}
	st := u.Status
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", u.State, st.UI)
	for _, line := range []string{st.Turn, st.Time, st.Next} {
		if line = strings.TrimSpace(line); line != "" {
			sb.WriteString("  " + strings.ReplaceAll(line, "\n", " ") + "\n")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, sb.String())
}

// Fanout publishes to every sink in order.
type Fanout []orchestrator.Sink

func (f Fanout) Publish(u orchestrator.Update) {
	for _, s := range f {
		s.Publish(u)
	}
}
