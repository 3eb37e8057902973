package commands

import (
	"context"

	"github.com/keshon/rickbot/pkg/cmd"
)

const embedColor = 0xb01e66

const rickrollGifURL = "https://c.tenor.com/x8v1oNUOmg4AAAAd/rickroll-roll.gif"

func replyText(ctx context.Context, inv *cmd.Invocation, content string) error {
	return inv.Reply(ctx, cmd.Text(content))
}

func replyEmbed(ctx context.Context, inv *cmd.Invocation, title, description string) error {
	return inv.Reply(ctx, cmd.Reply{Embed: &cmd.Embed{
		Title:       title,
		Description: description,
		Color:       embedColor,
	}})
}

// usage replies with the expected syntax of the invoked command.
func usage(ctx context.Context, inv *cmd.Invocation, syntax string) error {
	return replyText(ctx, inv, "Usage: `"+inv.Prefix+inv.Name+" "+syntax+"`")
}
