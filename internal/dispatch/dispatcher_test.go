package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/keshon/rickbot/internal/command"
	"github.com/keshon/rickbot/internal/cooldown"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

type fakeReplier struct {
	mu      sync.Mutex
	replies []cmd.Reply
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, r cmd.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	return f.err
}

func (f *fakeReplier) Typing(context.Context) error { return nil }

func (f *fakeReplier) all() []cmd.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cmd.Reply(nil), f.replies...)
}

type observed struct {
	mu    sync.Mutex
	calls []string
}

func (o *observed) Observe(command, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.calls = append(o.calls, command+":"+outcome)
	o.mu.Unlock()
}

type harness struct {
	d        *Dispatcher
	ledger   *cooldown.Ledger
	resolver *permission.Resolver
	logs     *observer.ObservedLogs
	metrics  *observed
	calls    map[string]*atomic.Int32
	lastArgs atomic.Value
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		ledger:   cooldown.New(),
		resolver: permission.NewResolver("owner", nil),
		logs:     logs,
		metrics:  &observed{},
		calls:    map[string]*atomic.Int32{},
	}

	counting := func(name string, run func() error) cmd.Command {
		n := &atomic.Int32{}
		h.calls[name] = n
		return cmd.Func(name, name, func(_ context.Context, inv *cmd.Invocation) error {
			n.Add(1)
			h.lastArgs.Store(inv.Args)
			return run()
		})
	}

	reg, err := command.NewBuilder().
		Register(counting("ping", func() error { return nil }), command.WithCooldown(5*time.Second), command.WithMaxUses(2)).
		Register(counting("once", func() error { return nil })).
		Register(counting("mod", func() error { return nil }), command.WithTier(permission.Moderator)).
		Register(counting("boom", func() error { return errors.New("db password is hunter2") })).
		Register(counting("panic", func() error { panic("kaboom") })).
		Build()
	require.NoError(t, err)

	h.d, err = New(Config{
		Prefix:      "r!",
		Registry:    reg,
		Permissions: h.resolver,
		Cooldowns:   h.ledger,
		Metrics:     h.metrics,
		Log:         zap.New(core),
	})
	require.NoError(t, err)
	return h
}

func (h *harness) count(name string) int {
	return int(h.calls[name].Load())
}

func guildMember(a permission.Actor) MembershipFunc {
	return func(context.Context) (permission.Actor, error) { return a, nil }
}

func message(content string, rep cmd.Replier) Event {
	return Event{
		ActorID:   "u1",
		ActorName: "rick",
		ServerID:  "g1",
		ChannelID: "c1",
		Content:   content,
		Membership: guildMember(permission.Actor{
			ID:            "u1",
			ServerID:      "g1",
			ServerOwnerID: "someone",
		}),
		Replier: rep,
	}
}

func TestPingExecutesOnceAndLogsSuccess(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}

	out := h.d.Dispatch(context.Background(), message("r!ping", rep))

	assert.Equal(t, OutcomeExecuted, out)
	assert.Equal(t, 1, h.count("ping"))
	assert.Empty(t, rep.all())

	entries := h.logs.FilterMessage("command executed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ping", entries[0].ContextMap()["command"])
}

func TestThirdPingWithinWindowIsRejected(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}
	ctx := context.Background()

	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(ctx, message("r!ping", rep)))
	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(ctx, message("r!ping", rep)))
	assert.Equal(t, OutcomeCooldown, h.d.Dispatch(ctx, message("r!ping", rep)))

	assert.Equal(t, 2, h.count("ping"))

	replies := rep.all()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Content, "Please wait")
	assert.Contains(t, replies[0].Content, "`r!ping`")

	entry := h.logs.FilterMessage("cooldown active").All()
	require.Len(t, entry, 1)
	assert.GreaterOrEqual(t, entry[0].ContextMap()["remaining"], int64(1))
}

func TestLastAllowedUseStillExecutes(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}

	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(context.Background(), message("r!once", rep)))
	assert.Equal(t, 1, h.count("once"))
	assert.Equal(t, OutcomeCooldown, h.d.Dispatch(context.Background(), message("r!once", rep)))
	assert.Equal(t, 1, h.count("once"))
}

func TestUnknownCommandIsSilent(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}

	out := h.d.Dispatch(context.Background(), message("r!unknown", rep))

	assert.Equal(t, OutcomeUnknown, out)
	assert.Empty(t, rep.all())
	for name := range h.calls {
		assert.Zero(t, h.count(name), name)
	}
	require.Equal(t, 1, h.logs.Len())
	assert.Equal(t, "no such command", h.logs.All()[0].Message)
}

func TestIgnoredMessages(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}
	ctx := context.Background()

	bot := message("r!ping", rep)
	bot.Bot = true

	assert.Equal(t, OutcomeIgnored, h.d.Dispatch(ctx, bot))
	assert.Equal(t, OutcomeIgnored, h.d.Dispatch(ctx, message("ping", rep)))
	assert.Equal(t, OutcomeIgnored, h.d.Dispatch(ctx, message("r!", rep)))
	assert.Equal(t, OutcomeIgnored, h.d.Dispatch(ctx, message("r!   ", rep)))
	assert.Equal(t, OutcomeIgnored, h.d.Dispatch(ctx, message(" r!ping", rep)))

	assert.Zero(t, h.count("ping"))
	assert.Empty(t, rep.all())
	assert.Zero(t, h.logs.Len())
}

func TestCommandNameIsCaseInsensitiveAndArgsAreSplit(t *testing.T) {
	h := newHarness(t)

	out := h.d.Dispatch(context.Background(), message("r!PiNg  hello   world", &fakeReplier{}))

	assert.Equal(t, OutcomeExecuted, out)
	assert.Equal(t, []string{"hello", "world"}, h.lastArgs.Load())
}

func TestPermissionDeniedDoesNotChargeCooldown(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}

	out := h.d.Dispatch(context.Background(), message("r!mod", rep))

	assert.Equal(t, OutcomeDenied, out)
	assert.Zero(t, h.count("mod"))
	assert.Zero(t, h.ledger.Len())
	_, charged := h.ledger.Lookup("u1", "mod")
	assert.False(t, charged)

	replies := rep.all()
	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Embed)
	assert.Equal(t, "Permission Denied", replies[0].Embed.Title)
	assert.Contains(t, replies[0].Embed.Description, "Moderator")
}

func TestModeratorRoleGrantsAccess(t *testing.T) {
	h := newHarness(t)
	h.resolver.AddModeratorRole("g1", "mods")

	ev := message("r!mod", &fakeReplier{})
	ev.Membership = guildMember(permission.Actor{ID: "u1", ServerID: "g1", RoleIDs: []string{"mods"}})

	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(context.Background(), ev))
	assert.Equal(t, 1, h.count("mod"))
}

func TestDirectMessagesSkipPermissionGate(t *testing.T) {
	h := newHarness(t)
	ev := message("r!mod", &fakeReplier{})
	ev.ServerID = ""
	ev.Membership = nil

	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(context.Background(), ev))
}

func TestMembershipErrorFailsClosed(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}
	ev := message("r!mod", rep)
	ev.Membership = func(context.Context) (permission.Actor, error) {
		return permission.Actor{}, errors.New("guild not cached")
	}

	assert.Equal(t, OutcomeDenied, h.d.Dispatch(context.Background(), ev))
	assert.Zero(t, h.count("mod"))
	assert.Equal(t, 1, h.logs.FilterMessage("permission check failed").Len())
	assert.Len(t, rep.all(), 1)
}

func TestHandlerErrorIsReportedWithoutLeaking(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}

	out := h.d.Dispatch(context.Background(), message("r!boom", rep))

	assert.Equal(t, OutcomeFailed, out)
	replies := rep.all()
	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Embed)
	assert.Equal(t, "An error occurred while executing the command.", replies[0].Embed.Description)
	assert.NotContains(t, replies[0].Embed.Description, "hunter2")
	assert.NotContains(t, replies[0].Content, "hunter2")

	failed := h.logs.FilterMessage("command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].ContextMap()["command"])
	assert.Contains(t, failed[0].ContextMap()["error"], "hunter2")
}

func TestFailuresDoNotBlockLaterMessages(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{}
	ctx := context.Background()

	assert.Equal(t, OutcomeFailed, h.d.Dispatch(ctx, message("r!boom", rep)))
	assert.Equal(t, OutcomeFailed, h.d.Dispatch(ctx, message("r!panic", rep)))
	assert.Equal(t, OutcomeExecuted, h.d.Dispatch(ctx, message("r!ping", rep)))
	assert.Equal(t, 1, h.count("ping"))

	panicked := h.logs.FilterMessage("command failed").FilterField(zap.String("command", "panic")).All()
	require.Len(t, panicked, 1)
	assert.Contains(t, panicked[0].ContextMap(), "stack")
}

func TestFeedbackDeliveryFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	rep := &fakeReplier{err: errors.New("missing access")}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.d.Dispatch(ctx, message("r!once", rep))
		h.d.Dispatch(ctx, message("r!once", rep))
		h.d.Dispatch(ctx, message("r!boom", rep))
	})
	assert.Equal(t, 1, h.logs.FilterMessage("failed to deliver feedback").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("failed to send error message").Len())
}

func TestConcurrentDispatchRespectsLimit(t *testing.T) {
	h := newHarness(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.d.Dispatch(context.Background(), message("r!ping", &fakeReplier{}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, h.count("ping"))
}

func TestOutcomesAreObserved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.d.Dispatch(ctx, message("r!ping", &fakeReplier{}))
	h.d.Dispatch(ctx, message("r!nope", &fakeReplier{}))
	h.d.Dispatch(ctx, message("r!mod", &fakeReplier{}))
	h.d.Dispatch(ctx, message("hello", &fakeReplier{}))

	assert.Equal(t, []string{"ping:executed", ":unknown", "mod:denied"}, h.metrics.calls)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Prefix: "", Registry: &command.Registry{}})
	assert.Error(t, err)

	_, err = New(Config{Prefix: "r!"})
	assert.Error(t, err)
}

type panickingLimiter struct{}

func (panickingLimiter) Check(string, string, time.Duration, int) cooldown.Result {
	panic("ledger corrupted")
}

func TestPanicOutsideHandlerIsObservedAsFailed(t *testing.T) {
	reg, err := command.NewBuilder().
		Register(cmd.Func("ping", "ping", func(context.Context, *cmd.Invocation) error { return nil })).
		Build()
	require.NoError(t, err)

	metrics := &observed{}
	d, err := New(Config{
		Prefix:      "r!",
		Registry:    reg,
		Permissions: permission.NewResolver("owner", nil),
		Cooldowns:   panickingLimiter{},
		Metrics:     metrics,
	})
	require.NoError(t, err)

	out := d.Dispatch(context.Background(), message("r!ping", &fakeReplier{}))

	assert.Equal(t, OutcomeFailed, out)
	assert.Equal(t, []string{"ping:failed"}, metrics.calls)
}
