package cmd

import "context"

// Middleware wraps a command (guild-only gate, history recording, typing indicator).
// The wrapped type remains Command.
type Middleware func(Command) Command

// Apply applies middlewares in order; the last in the list is the outermost.
func Apply(c Command, mws ...Middleware) Command {
	for _, mw := range mws {
		c = mw(c)
	}
	return c
}

// WithGuildOnly drops invocations from private contexts without running the command.
func WithGuildOnly() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if inv.Direct() {
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithTyping shows the typing indicator before running the command. A failed
// indicator does not stop the command.
func WithTyping() Middleware {
	return func(c Command) Command {
		return Wrap(c, func(ctx context.Context, inv *Invocation) error {
			if inv.Replier != nil {
				_ = inv.Replier.Typing(ctx)
			}
			return c.Run(ctx, inv)
		})
	}
}
