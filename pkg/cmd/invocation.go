// Package cmd provides a transport-agnostic command core: a command is something
// with a name, description, and Run(ctx, invocation). How messages reach it and
// how replies leave it (Discord, console) is defined by adapters that implement Replier.
package cmd

import "context"

// Embed is the one structured reply shape adapters know how to render.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
}

// Reply is an outbound message: plain content, an embed, or both.
type Reply struct {
	Content string
	Embed   *Embed
}

// Text returns a plain-content reply.
func Text(content string) Reply {
	return Reply{Content: content}
}

// Replier is the reply capability handed to a command. The command never needs
// to know which transport is behind it.
type Replier interface {
	Reply(ctx context.Context, r Reply) error
	// Typing signals that a reply is coming (deferred reply).
	Typing(ctx context.Context) error
}

// Invocation carries everything a command runner passes to a command.
type Invocation struct {
	ID        string
	Name      string
	Prefix    string
	Args      []string
	ActorID   string
	ActorName string
	ServerID  string
	ChannelID string
	Replier   Replier
}

// Direct reports whether the invocation came from a private context (no server).
func (inv *Invocation) Direct() bool {
	return inv.ServerID == ""
}

// Reply is a shortcut for inv.Replier.Reply.
func (inv *Invocation) Reply(ctx context.Context, r Reply) error {
	return inv.Replier.Reply(ctx, r)
}

// Command is the universal contract: identity plus execution. Permissions,
// cooldowns and registration stay in the registry descriptor.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

type funcCommand struct {
	name, description string
	run               func(ctx context.Context, inv *Invocation) error
}

func (f *funcCommand) Name() string        { return f.name }
func (f *funcCommand) Description() string { return f.description }
func (f *funcCommand) Run(ctx context.Context, inv *Invocation) error {
	return f.run(ctx, inv)
}

// Func builds a Command from a plain function.
func Func(name, description string, run func(ctx context.Context, inv *Invocation) error) Command {
	return &funcCommand{name: name, description: description, run: run}
}
