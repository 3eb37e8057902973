// Package command holds the immutable registry of command descriptors the
// dispatcher looks commands up in. It is built once at startup.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

const (
	DefaultCooldown = 3 * time.Second
	DefaultMaxUses  = 1
)

// Descriptor is the identity and policy of one command.
type Descriptor struct {
	Command  cmd.Command
	Tier     permission.Tier
	Cooldown time.Duration
	MaxUses  int
	Aliases  []string
	Category string
}

// Name returns the canonical (lower-case) command name.
func (d Descriptor) Name() string {
	return strings.ToLower(d.Command.Name())
}

// Option adjusts a descriptor during registration.
type Option func(*Descriptor)

func WithTier(t permission.Tier) Option { return func(d *Descriptor) { d.Tier = t } }

func WithCooldown(window time.Duration) Option { return func(d *Descriptor) { d.Cooldown = window } }

func WithMaxUses(n int) Option { return func(d *Descriptor) { d.MaxUses = n } }

func WithAliases(aliases ...string) Option { return func(d *Descriptor) { d.Aliases = aliases } }

func WithCategory(category string) Option { return func(d *Descriptor) { d.Category = category } }

// WithMiddleware wraps the command; the last middleware is the outermost.
func WithMiddleware(mws ...cmd.Middleware) Option {
	return func(d *Descriptor) { d.Command = cmd.Apply(d.Command, mws...) }
}

// Registry maps names and aliases to descriptors. It is read-only once built.
type Registry struct {
	byName map[string]*Descriptor
	order  []string
}

// Lookup finds a command by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// All returns every command once, sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out
}

// Len returns the number of distinct commands.
func (r *Registry) Len() int {
	return len(r.order)
}

// Builder collects registrations and validates them on Build.
type Builder struct {
	descs []*Descriptor
	errs  []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Register adds c with the default policy adjusted by opts.
func (b *Builder) Register(c cmd.Command, opts ...Option) *Builder {
	if c == nil {
		b.errs = append(b.errs, errors.New("nil command"))
		return b
	}
	d := &Descriptor{
		Command:  c,
		Tier:     permission.Everyone,
		Cooldown: DefaultCooldown,
		MaxUses:  DefaultMaxUses,
	}
	for _, opt := range opts {
		opt(d)
	}
	b.descs = append(b.descs, d)
	return b
}

// Build validates every registration and returns the registry.
func (b *Builder) Build() (*Registry, error) {
	errs := append([]error(nil), b.errs...)
	r := &Registry{byName: make(map[string]*Descriptor)}

	for _, d := range b.descs {
		name := d.Name()
		if err := validate(d); err != nil {
			errs = append(errs, fmt.Errorf("command %q: %w", name, err))
			continue
		}
		if _, taken := r.byName[name]; taken {
			errs = append(errs, fmt.Errorf("command %q: name already registered", name))
			continue
		}
		r.byName[name] = d
		r.order = append(r.order, name)
	}

	for _, d := range b.descs {
		for _, alias := range d.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				errs = append(errs, fmt.Errorf("command %q: empty alias", d.Name()))
				continue
			}
			if _, taken := r.byName[alias]; taken {
				errs = append(errs, fmt.Errorf("command %q: alias %q already registered", d.Name(), alias))
				continue
			}
			r.byName[alias] = d
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	sort.Strings(r.order)
	return r, nil
}

func validate(d *Descriptor) error {
	switch {
	case d.Name() == "":
		return errors.New("empty name")
	case strings.ContainsAny(d.Name(), " \t\n"):
		return errors.New("name contains whitespace")
	case !d.Tier.Valid():
		return fmt.Errorf("invalid tier %d", d.Tier)
	case d.Cooldown <= 0:
		return fmt.Errorf("cooldown must be positive, got %s", d.Cooldown)
	case d.Cooldown%time.Second != 0:
		return fmt.Errorf("cooldown must be whole seconds, got %s", d.Cooldown)
	case d.MaxUses <= 0:
		return fmt.Errorf("max uses must be positive, got %d", d.MaxUses)
	}
	return nil
}
