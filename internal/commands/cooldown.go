package commands

import (
	"context"
	"fmt"

	"github.com/keshon/rickbot/internal/cooldown"
	"github.com/keshon/rickbot/pkg/cmd"
)

// CooldownCommand lets moderators inspect and clear cooldown state.
type CooldownCommand struct {
	Ledger  *cooldown.Ledger
	Catalog *Catalog
}

func (c *CooldownCommand) Name() string        { return "cooldown" }
func (c *CooldownCommand) Description() string { return "Reset or inspect command cooldowns" }

const cooldownUsage = "reset <user> [command] | command <command> | stats"

func (c *CooldownCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) == 0 {
		return usage(ctx, inv, cooldownUsage)
	}

	switch inv.Args[0] {
	case "reset":
		if len(inv.Args) < 2 {
			return usage(ctx, inv, cooldownUsage)
		}
		actor := trimMention(inv.Args[1])
		if actor == "" {
			return usage(ctx, inv, cooldownUsage)
		}
		if len(inv.Args) >= 3 {
			name, ok := c.canonical(inv.Args[2])
			if !ok {
				return replyText(ctx, inv, fmt.Sprintf("Unknown command `%s`.", inv.Args[2]))
			}
			n := c.Ledger.Reset(actor, name)
			return replyText(ctx, inv, fmt.Sprintf("Cleared %d cooldown(s) of `%s` for <@%s>.", n, name, actor))
		}
		n := c.Ledger.ResetActor(actor)
		return replyText(ctx, inv, fmt.Sprintf("Cleared %d cooldown(s) for <@%s>.", n, actor))

	case "command":
		if len(inv.Args) < 2 {
			return usage(ctx, inv, cooldownUsage)
		}
		name, ok := c.canonical(inv.Args[1])
		if !ok {
			return replyText(ctx, inv, fmt.Sprintf("Unknown command `%s`.", inv.Args[1]))
		}
		n := c.Ledger.ResetCommand(name)
		return replyText(ctx, inv, fmt.Sprintf("Cleared %d cooldown(s) of `%s`.", n, name))

	case "stats":
		return replyText(ctx, inv, fmt.Sprintf("Tracking %d cooldown entries.", c.Ledger.Len()))
	}
	return usage(ctx, inv, cooldownUsage)
}

func (c *CooldownCommand) canonical(name string) (string, bool) {
	d, ok := c.Catalog.Lookup(name)
	if !ok {
		return "", false
	}
	return d.Name(), true
}
