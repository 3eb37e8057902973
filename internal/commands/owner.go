package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

type OwnerCommand struct {
	Permissions *permission.Resolver
	Log         *zap.Logger
}

func (c *OwnerCommand) Name() string        { return "owner" }
func (c *OwnerCommand) Description() string { return "Show or transfer bot ownership" }

const ownerUsage = "[<user>]"

func (c *OwnerCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) == 0 {
		owner := c.Permissions.Owner()
		if owner == "" {
			return replyText(ctx, inv, "No bot owner is configured.")
		}
		return replyText(ctx, inv, fmt.Sprintf("The bot owner is <@%s>.", owner))
	}

	next := trimMention(inv.Args[0])
	if next == "" {
		return usage(ctx, inv, ownerUsage)
	}
	c.Permissions.SetOwner(next)
	c.Log.Warn("bot owner changed", zap.String("from", inv.ActorID), zap.String("to", next))
	return replyText(ctx, inv, fmt.Sprintf("Bot ownership transferred to <@%s>.", next))
}
