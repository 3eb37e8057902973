package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/keshon/rickbot/pkg/cmd"
)

// ErrorColor is the embed color of the generic failure notice.
const ErrorColor = 0xff0000

// ErrorReporter receives handler failures caught at the dispatch boundary.
type ErrorReporter interface {
	Report(ctx context.Context, inv *cmd.Invocation, err *Error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(ctx context.Context, inv *cmd.Invocation, err *Error)

func (f ReporterFunc) Report(ctx context.Context, inv *cmd.Invocation, err *Error) {
	f(ctx, inv, err)
}

// LogReporter logs the failure in full and sends the actor a generic notice.
// The error text never reaches the actor.
type LogReporter struct {
	Log *zap.Logger
}

func (r LogReporter) Report(ctx context.Context, inv *cmd.Invocation, failure *Error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	fields := []zap.Field{
		zap.Stringer("kind", failure.Kind),
		zap.String("command", failure.Command),
		zap.String("actor", failure.ActorID),
		zap.String("invocation", inv.ID),
		zap.Error(failure.Err),
	}
	var p *PanicError
	if errors.As(failure.Err, &p) {
		fields = append(fields, zap.ByteString("stack", p.Stack))
	}
	log.Error("command failed", fields...)

	if inv.Replier == nil {
		return
	}
	notice := cmd.Reply{Embed: &cmd.Embed{
		Title:       "Error",
		Description: "An error occurred while executing the command.",
		Footer:      "If this issue persists, please contact a server administrator.",
		Color:       ErrorColor,
	}}
	if err := inv.Reply(ctx, notice); err != nil {
		log.Error("failed to send error message",
			zap.Stringer("kind", FeedbackDeliveryFailure),
			zap.String("command", failure.Command),
			zap.Error(err),
		)
	}
}
