package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/rickbot/internal/storage"
	"github.com/keshon/rickbot/pkg/cmd"
	"github.com/keshon/rickbot/pkg/util"
)

// HistoryCommand shows the most recent commands run in the current server.
type HistoryCommand struct {
	Storage *storage.Storage
}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Show recently used commands in this server" }

func (c *HistoryCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if c.Storage == nil {
		return replyText(ctx, inv, "Command history is not enabled.")
	}
	records, err := c.Storage.FetchCommandHistory(inv.ServerID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return replyText(ctx, inv, "No commands recorded yet.")
	}

	var sb strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		fmt.Fprintf(&sb, "`%s` **%s** `%s%s`", util.FormatDateTpl(r.Datetime, "YYYY-MM-DD hh:mm"), r.Username, inv.Prefix, r.Command)
		if r.Param != "" {
			fmt.Fprintf(&sb, " %s", r.Param)
		}
		sb.WriteString("\n")
	}
	return replyEmbed(ctx, inv, "📜 Command History", strings.TrimSpace(sb.String()))
}
