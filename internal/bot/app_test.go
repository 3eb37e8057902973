package bot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/pkg/cmd"
)

type captureReplier struct {
	mu      sync.Mutex
	replies []cmd.Reply
}

func (c *captureReplier) Reply(_ context.Context, r cmd.Reply) error {
	c.mu.Lock()
	c.replies = append(c.replies, r)
	c.mu.Unlock()
	return nil
}

func (c *captureReplier) Typing(context.Context) error { return nil }

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("commands:\n  ping:\n    max_uses: 2\n"), 0o644))
	return &config.Config{
		Prefix:                "r!",
		OwnerID:               "owner",
		ModeratorRoles:        []string{"g1:r1"},
		StoragePath:           filepath.Join(dir, "store.json"),
		CooldownSweepInterval: time.Millisecond,
		PolicyFile:            policy,
	}
}

func TestNewWiresEverything(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"r1"}, a.Permissions.ModeratorRoles("g1"))
	d, ok := a.Registry.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, 2, d.MaxUses)

	rep := &captureReplier{}
	out := a.Dispatcher.Dispatch(context.Background(), dispatch.Event{ActorID: "u1", Content: "r!ping", Replier: rep})
	assert.Equal(t, dispatch.OutcomeExecuted, out)
	assert.Len(t, rep.replies, 1)

	families, err := a.Gatherer.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rickbot_dispatch_total")
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.PolicyFile, []byte("commands:\n  nope:\n    max_uses: 2\n"), 0o644))

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, `unknown command "nope"`)
}

func TestStartJobsRunsSweeper(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	require.NoError(t, a.StartJobs())
	assert.Equal(t, []string{"cooldown-sweeper"}, a.Jobs.List())
	require.NoError(t, a.Close())
	assert.Empty(t, a.Jobs.List())
}
