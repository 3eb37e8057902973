package commands

import (
	"context"

	"github.com/keshon/rickbot/pkg/cmd"
)

type PingCommand struct{}

func (c *PingCommand) Name() string        { return "ping" }
func (c *PingCommand) Description() string { return "Ping the bot" }

func (c *PingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	return replyText(ctx, inv, rickrollGifURL)
}
