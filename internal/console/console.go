// Package console feeds stdin lines to the dispatcher as chat messages and
// prints replies to stdout.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

// Identity is who the console user pretends to be. A non-empty ServerID
// simulates a server context with the given membership facts.
type Identity struct {
	ActorID       string
	ActorName     string
	ServerID      string
	ServerOwnerID string
	RoleIDs       []string
	Permissions   int64
}

// Dispatcher is the pipeline each line is handed to.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev dispatch.Event) dispatch.Outcome
}

// Session reads messages from In and writes replies to Out.
type Session struct {
	Dispatcher Dispatcher
	Identity   Identity
	In         io.Reader
	Out        io.Writer

	mu sync.Mutex
}

// Run dispatches every line on its own goroutine and returns once input is
// exhausted and all dispatches have finished.
func (s *Session) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	scanner := bufio.NewScanner(s.In)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		ev := s.event(line)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatcher.Dispatch(ctx, ev)
		}()
	}
	wg.Wait()
	return scanner.Err()
}

func (s *Session) event(line string) dispatch.Event {
	id := s.Identity
	ev := dispatch.Event{
		ActorID:   id.ActorID,
		ActorName: id.ActorName,
		ServerID:  id.ServerID,
		ChannelID: "console",
		Content:   line,
		Replier:   &writer{s: s},
	}
	if id.ServerID != "" {
		ev.Membership = func(context.Context) (permission.Actor, error) {
			return permission.Actor{
				ID:            id.ActorID,
				ServerID:      id.ServerID,
				ServerOwnerID: id.ServerOwnerID,
				RoleIDs:       id.RoleIDs,
				Permissions:   id.Permissions,
			}, nil
		}
	}
	return ev
}

type writer struct {
	s *Session
}

func (w *writer) Reply(_ context.Context, r cmd.Reply) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	_, err := io.WriteString(w.s.Out, Format(r))
	return err
}

func (w *writer) Typing(context.Context) error { return nil }

// Format renders a reply as plain text, one block per reply.
func Format(r cmd.Reply) string {
	var sb strings.Builder
	if r.Content != "" {
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	if e := r.Embed; e != nil {
		if e.Title != "" {
			fmt.Fprintf(&sb, "[%s]\n", e.Title)
		}
		if e.Description != "" {
			sb.WriteString(e.Description)
			sb.WriteString("\n")
		}
		if e.Footer != "" {
			fmt.Fprintf(&sb, "-- %s\n", e.Footer)
		}
	}
	return sb.String()
}
