package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/pkg/cmd"
)

type recorder struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (r *recorder) Dispatch(ctx context.Context, ev dispatch.Event) dispatch.Outcome {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	_ = ev.Replier.Reply(ctx, cmd.Text("echo "+ev.Content))
	return dispatch.OutcomeExecuted
}

func TestRunDispatchesEveryLine(t *testing.T) {
	rec := &recorder{}
	var out bytes.Buffer
	s := &Session{
		Dispatcher: rec,
		Identity:   Identity{ActorID: "u1", ServerID: "g1", RoleIDs: []string{"r1"}, Permissions: 8},
		In:         strings.NewReader("r!ping\n\n  r!help  \n"),
		Out:        &out,
	}

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, rec.events, 2)
	assert.Contains(t, out.String(), "echo r!ping\n")
	assert.Contains(t, out.String(), "echo r!help\n")

	ev := rec.events[0]
	assert.Equal(t, "u1", ev.ActorID)
	require.NotNil(t, ev.Membership)
	actor, err := ev.Membership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, actor.RoleIDs)
	assert.Equal(t, int64(8), actor.Permissions)
}

func TestDirectIdentityHasNoMembership(t *testing.T) {
	s := &Session{Identity: Identity{ActorID: "u1"}}
	assert.Nil(t, s.event("r!ping").Membership)
}

func TestFormat(t *testing.T) {
	got := Format(cmd.Reply{Content: "gif", Embed: &cmd.Embed{Title: "Error", Description: "boom", Footer: "call admin"}})
	assert.Equal(t, "gif\n[Error]\nboom\n-- call admin\n", got)
}
