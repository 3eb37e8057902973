package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

func noop(name string) cmd.Command {
	return cmd.Func(name, name+" command", func(context.Context, *cmd.Invocation) error { return nil })
}

func TestRegisterAppliesDefaults(t *testing.T) {
	reg, err := NewBuilder().Register(noop("Ping")).Build()
	require.NoError(t, err)

	d, ok := reg.Lookup("PING")
	require.True(t, ok)
	assert.Equal(t, "ping", d.Name())
	assert.Equal(t, permission.Everyone, d.Tier)
	assert.Equal(t, DefaultCooldown, d.Cooldown)
	assert.Equal(t, DefaultMaxUses, d.MaxUses)
}

func TestAliasesResolveToCanonicalCommand(t *testing.T) {
	reg, err := NewBuilder().
		Register(noop("help"), WithAliases("h", "Commands")).
		Register(noop("ping")).
		Build()
	require.NoError(t, err)

	d, ok := reg.Lookup("commands")
	require.True(t, ok)
	assert.Equal(t, "help", d.Name())
	assert.Equal(t, 2, reg.Len())

	var names []string
	for _, d := range reg.All() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"help", "ping"}, names)
}

func TestBuildRejectsBadPolicy(t *testing.T) {
	cases := map[string][]Option{
		"zero cooldown":     {WithCooldown(0)},
		"negative cooldown": {WithCooldown(-time.Second)},
		"fractional":        {WithCooldown(1500 * time.Millisecond)},
		"zero uses":         {WithMaxUses(0)},
		"bad tier":          {WithTier(permission.Tier(9))},
	}
	for name, opts := range cases {
		_, err := NewBuilder().Register(noop("ping"), opts...).Build()
		assert.Error(t, err, name)
	}
}

func TestBuildRejectsDuplicates(t *testing.T) {
	_, err := NewBuilder().Register(noop("ping")).Register(noop("PING")).Build()
	assert.ErrorContains(t, err, "already registered")

	_, err = NewBuilder().Register(noop("ping")).Register(noop("help"), WithAliases("ping")).Build()
	assert.ErrorContains(t, err, `alias "ping"`)

	_, err = NewBuilder().Register(noop("")).Build()
	assert.ErrorContains(t, err, "empty name")

	_, err = NewBuilder().Register(nil).Build()
	assert.Error(t, err)
}

func TestPolicyOverrides(t *testing.T) {
	policies, err := ParsePolicies([]byte(`
commands:
  Ping:
    cooldown: 5s
    max_uses: 2
  help:
    tier: moderator
`))
	require.NoError(t, err)

	reg, err := NewBuilder().
		Register(noop("ping")).
		Register(noop("help"), WithCooldown(10*time.Second)).
		ApplyPolicies(policies).
		Build()
	require.NoError(t, err)

	ping, _ := reg.Lookup("ping")
	assert.Equal(t, 5*time.Second, ping.Cooldown)
	assert.Equal(t, 2, ping.MaxUses)
	assert.Equal(t, permission.Everyone, ping.Tier)

	help, _ := reg.Lookup("help")
	assert.Equal(t, permission.Moderator, help.Tier)
	assert.Equal(t, 10*time.Second, help.Cooldown)
}

func TestPolicyForUnknownCommandFails(t *testing.T) {
	policies, err := ParsePolicies([]byte("commands:\n  pong:\n    max_uses: 3\n"))
	require.NoError(t, err)

	_, err = NewBuilder().Register(noop("ping")).ApplyPolicies(policies).Build()
	assert.ErrorContains(t, err, "unknown command")
}

func TestPolicyRejectsUnknownTier(t *testing.T) {
	_, err := ParsePolicies([]byte("commands:\n  ping:\n    tier: root\n"))
	assert.Error(t, err)
}

func TestMiddlewareWrapsCommand(t *testing.T) {
	var order []string
	mw := func(tag string) cmd.Middleware {
		return func(c cmd.Command) cmd.Command {
			return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
				order = append(order, tag)
				return c.Run(ctx, inv)
			})
		}
	}

	reg, err := NewBuilder().Register(noop("ping"), WithMiddleware(mw("inner"), mw("outer"))).Build()
	require.NoError(t, err)

	d, _ := reg.Lookup("ping")
	require.NoError(t, d.Command.Run(context.Background(), &cmd.Invocation{}))
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "ping", cmd.Root(d.Command).Name())
}
