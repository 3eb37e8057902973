// Package dispatch runs inbound messages through the command pipeline:
// parse, lookup, permission gate, cooldown gate, execution and reporting.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/command"
	"github.com/keshon/rickbot/internal/cooldown"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

// Registry is the read side of command.Registry.
type Registry interface {
	Lookup(name string) (command.Descriptor, bool)
}

// Gatekeeper is the part of permission.Resolver the dispatcher uses.
type Gatekeeper interface {
	HasTier(actor permission.Actor, required permission.Tier) bool
	DenyFeedback(ctx context.Context, replier cmd.Replier, required permission.Tier)
}

// Limiter is the part of cooldown.Ledger the dispatcher uses.
type Limiter interface {
	Check(actorID, command string, window time.Duration, maxUses int) cooldown.Result
}

// Observer records dispatch outcomes (see internal/metrics).
type Observer interface {
	Observe(command, outcome string, took time.Duration)
}

// MembershipFunc resolves the actor's membership facts in the server the
// message came from. It is nil for direct/private messages.
type MembershipFunc func(ctx context.Context) (permission.Actor, error)

// Event is one inbound message as seen by the dispatcher.
type Event struct {
	ActorID    string
	ActorName  string
	Bot        bool
	ServerID   string
	ChannelID  string
	Content    string
	Membership MembershipFunc
	Replier    cmd.Replier
}

// Outcome is the terminal state a dispatch ended in.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeUnknown
	OutcomeDenied
	OutcomeCooldown
	OutcomeFailed
	OutcomeExecuted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeDenied:
		return "denied"
	case OutcomeCooldown:
		return "cooldown"
	case OutcomeFailed:
		return "failed"
	case OutcomeExecuted:
		return "executed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Config wires the dispatcher to its collaborators. Registry, Permissions and
// Cooldowns are required.
type Config struct {
	Prefix      string
	Registry    Registry
	Permissions Gatekeeper
	Cooldowns   Limiter
	Reporter    ErrorReporter
	Metrics     Observer
	Log         *zap.Logger
}

// Dispatcher is safe for concurrent use; adapters call Dispatch once per
// inbound message, each on its own goroutine.
type Dispatcher struct {
	prefix   string
	registry Registry
	perms    Gatekeeper
	limiter  Limiter
	reporter ErrorReporter
	metrics  Observer
	log      *zap.Logger
}

// New validates cfg and returns a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.Prefix) == "" {
		return nil, errors.New("dispatch: empty prefix")
	}
	if cfg.Registry == nil || cfg.Permissions == nil || cfg.Cooldowns == nil {
		return nil, errors.New("dispatch: registry, permissions and cooldowns are required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = LogReporter{Log: cfg.Log}
	}
	return &Dispatcher{
		prefix:   cfg.Prefix,
		registry: cfg.Registry,
		perms:    cfg.Permissions,
		limiter:  cfg.Cooldowns,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}, nil
}

// Prefix returns the configured command prefix.
func (d *Dispatcher) Prefix() string { return d.prefix }

// Dispatch runs ev through the pipeline. It never panics and never returns an
// error: every exit is a terminal, logged outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (out Outcome) {
	// canonical is set once lookup succeeds; from then on every exit,
	// including a recovered panic, is observed with its final outcome.
	var (
		canonical string
		start     time.Time
	)
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("dispatch panicked",
				zap.Any("panic", r),
				zap.String("actor", ev.ActorID),
				zap.ByteString("stack", debug.Stack()),
			)
			out = OutcomeFailed
		}
		if canonical != "" {
			d.observe(canonical, out, time.Since(start))
		}
	}()

	if ev.Bot || !strings.HasPrefix(ev.Content, d.prefix) {
		return OutcomeIgnored
	}

	fields := strings.Fields(ev.Content[len(d.prefix):])
	if len(fields) == 0 {
		return OutcomeIgnored
	}
	name := strings.ToLower(fields[0])

	desc, ok := d.registry.Lookup(name)
	if !ok {
		d.handle(ctx, ev, nil, &Error{Kind: LookupMiss, Command: name, ActorID: ev.ActorID})
		d.observe("", OutcomeUnknown, 0)
		return OutcomeUnknown
	}

	canonical = desc.Name()
	start = time.Now()

	if ev.Membership != nil && desc.Tier > permission.Everyone {
		if failure := d.checkPermission(ctx, ev, desc); failure != nil {
			d.handle(ctx, ev, nil, failure)
			return OutcomeDenied
		}
	}

	res := d.limiter.Check(ev.ActorID, canonical, desc.Cooldown, desc.MaxUses)
	if !res.Allowed {
		d.handle(ctx, ev, nil, &Error{
			Kind:             CooldownActive,
			Command:          canonical,
			ActorID:          ev.ActorID,
			RemainingSeconds: res.RemainingSeconds,
		})
		return OutcomeCooldown
	}

	inv := &cmd.Invocation{
		ID:        uuid.NewString(),
		Name:      canonical,
		Prefix:    d.prefix,
		Args:      fields[1:],
		ActorID:   ev.ActorID,
		ActorName: ev.ActorName,
		ServerID:  ev.ServerID,
		ChannelID: ev.ChannelID,
		Replier:   ev.Replier,
	}

	if err := d.execute(WithCaller(ctx, ev.Membership), desc.Command, inv); err != nil {
		d.handle(ctx, ev, inv, &Error{Kind: HandlerFailure, Command: canonical, ActorID: ev.ActorID, Err: err})
		return OutcomeFailed
	}

	d.log.Info("command executed",
		zap.String("command", canonical),
		zap.String("actor", ev.ActorID),
		zap.String("server", ev.ServerID),
		zap.String("invocation", inv.ID),
		zap.Duration("took", time.Since(start)),
	)
	return OutcomeExecuted
}

func (d *Dispatcher) checkPermission(ctx context.Context, ev Event, desc command.Descriptor) *Error {
	failure := &Error{Kind: PermissionDenied, Command: desc.Name(), ActorID: ev.ActorID, Tier: desc.Tier}

	actor, err := ev.Membership(ctx)
	if err != nil {
		failure.Err = fmt.Errorf("resolve membership: %w", err)
		return failure
	}
	if actor.ID == "" {
		actor.ID = ev.ActorID
	}
	if actor.ServerID == "" {
		actor.ServerID = ev.ServerID
	}
	if d.perms.HasTier(actor, desc.Tier) {
		return nil
	}
	return failure
}

func (d *Dispatcher) execute(ctx context.Context, c cmd.Command, inv *cmd.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return c.Run(ctx, inv)
}

func (d *Dispatcher) handle(ctx context.Context, ev Event, inv *cmd.Invocation, failure *Error) {
	switch failure.Kind {
	case LookupMiss:
		d.log.Warn("no such command", zap.String("command", failure.Command), zap.String("actor", failure.ActorID))

	case PermissionDenied:
		if failure.Err != nil {
			d.log.Warn("permission check failed", zap.String("command", failure.Command),
				zap.String("actor", failure.ActorID), zap.Error(failure.Err))
		} else {
			d.log.Info("permission denied", zap.String("command", failure.Command),
				zap.String("actor", failure.ActorID), zap.Stringer("tier", failure.Tier))
		}
		if ev.Replier != nil {
			d.perms.DenyFeedback(ctx, ev.Replier, failure.Tier)
		}

	case CooldownActive:
		d.log.Info("cooldown active", zap.String("command", failure.Command),
			zap.String("actor", failure.ActorID), zap.Int("remaining", failure.RemainingSeconds))
		msg := fmt.Sprintf("Please wait %d second(s) before using `%s%s` again.",
			failure.RemainingSeconds, d.prefix, failure.Command)
		d.send(ctx, ev.Replier, failure.Command, cmd.Text(msg))

	case HandlerFailure:
		d.reporter.Report(ctx, inv, failure)

	case FeedbackDeliveryFailure:
		d.log.Error("failed to deliver feedback", zap.String("command", failure.Command), zap.Error(failure.Err))
	}
}

func (d *Dispatcher) send(ctx context.Context, replier cmd.Replier, command string, r cmd.Reply) {
	if replier == nil {
		return
	}
	if err := replier.Reply(ctx, r); err != nil {
		d.handle(ctx, Event{}, nil, &Error{Kind: FeedbackDeliveryFailure, Command: command, Err: err})
	}
}

func (d *Dispatcher) observe(command string, out Outcome, took time.Duration) {
	if d.metrics != nil {
		d.metrics.Observe(command, out.String(), took)
	}
}
