package dispatch

import (
	"fmt"

	"github.com/keshon/rickbot/internal/permission"
)

// Kind is the closed set of ways a dispatch can end without executing cleanly.
type Kind int

const (
	LookupMiss Kind = iota + 1
	PermissionDenied
	CooldownActive
	HandlerFailure
	FeedbackDeliveryFailure
)

func (k Kind) String() string {
	switch k {
	case LookupMiss:
		return "lookup miss"
	case PermissionDenied:
		return "permission denied"
	case CooldownActive:
		return "cooldown active"
	case HandlerFailure:
		return "handler failure"
	case FeedbackDeliveryFailure:
		return "feedback delivery failure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error carries the structured facts of a failed dispatch.
type Error struct {
	Kind             Kind
	Command          string
	ActorID          string
	Tier             permission.Tier
	RemainingSeconds int
	Err              error
}

func (e *Error) Error() string {
	switch e.Kind {
	case PermissionDenied:
		return fmt.Sprintf("%s: %s requires %s (actor %s)", e.Kind, e.Command, e.Tier, e.ActorID)
	case CooldownActive:
		return fmt.Sprintf("%s: %s for actor %s, %ds left", e.Kind, e.Command, e.ActorID, e.RemainingSeconds)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Command)
}

func (e *Error) Unwrap() error { return e.Err }

// PanicError is what a recovered handler panic becomes.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}
