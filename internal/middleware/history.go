package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/rickbot/internal/storage"
	"github.com/keshon/rickbot/pkg/cmd"
	"go.uber.org/zap"
)

// HistoryStore receives one record per successful invocation.
type HistoryStore interface {
	AppendCommandToHistory(guildID string, record storage.CommandHistoryRecord) error
}

// WithCommandLogger records successful runs of the wrapped command in store.
// A failed write is logged and does not change the command result.
func WithCommandLogger(store HistoryStore, log *zap.Logger) cmd.Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if err := c.Run(ctx, inv); err != nil {
				return err
			}
			rec := storage.CommandHistoryRecord{
				InvocationID: inv.ID,
				ChannelID:    inv.ChannelID,
				UserID:       inv.ActorID,
				Username:     inv.ActorName,
				Command:      c.Name(),
				Param:        strings.Join(inv.Args, " "),
				Datetime:     time.Now().UTC(),
			}
			if err := store.AppendCommandToHistory(inv.ServerID, rec); err != nil {
				log.Warn("failed to log command",
					zap.String("command", c.Name()),
					zap.String("invocation", inv.ID),
					zap.Error(err))
			}
			return nil
		})
	}
}
