// /internal/commands/registry.go
package commands

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/command"
	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/cooldown"
	"github.com/keshon/rickbot/internal/middleware"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/internal/storage"
	"github.com/keshon/rickbot/pkg/cmd"
)

// Deps are the collaborators of the built-in commands. Storage may be nil,
// in which case history is not recorded.
type Deps struct {
	Permissions *permission.Resolver
	Cooldowns   *cooldown.Ledger
	Storage     *storage.Storage
	Log         *zap.Logger
}

// Catalog gives commands that describe other commands read access to the
// registry once it is built.
type Catalog struct {
	reg atomic.Pointer[command.Registry]
}

func (c *Catalog) set(r *command.Registry) { c.reg.Store(r) }

// All returns the registered descriptors, or nil before Build finished.
func (c *Catalog) All() []command.Descriptor {
	if r := c.reg.Load(); r != nil {
		return r.All()
	}
	return nil
}

// Lookup resolves a name or alias to its descriptor.
func (c *Catalog) Lookup(name string) (command.Descriptor, bool) {
	if r := c.reg.Load(); r != nil {
		return r.Lookup(name)
	}
	return command.Descriptor{}, false
}

// Register adds every built-in command to b.
func Register(b *command.Builder, deps Deps, catalog *Catalog) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	var mws []cmd.Middleware
	if deps.Storage != nil {
		mws = append(mws, middleware.WithCommandLogger(deps.Storage, deps.Log))
	}
	// Guild-only is outermost so direct messages neither type nor get recorded.
	privileged := func(inner ...cmd.Middleware) command.Option {
		chain := append(inner, mws...)
		return command.WithMiddleware(append(chain, cmd.WithGuildOnly())...)
	}

	b.Register(&PingCommand{},
		command.WithCategory(config.CategoryGeneral),
		command.WithMiddleware(mws...),
	)
	b.Register(&HelpCommand{Catalog: catalog, Permissions: deps.Permissions},
		command.WithCategory(config.CategoryGeneral),
		command.WithAliases("commands"),
		command.WithMiddleware(mws...),
	)
	b.Register(&HistoryCommand{Storage: deps.Storage},
		command.WithTier(permission.Moderator),
		command.WithCategory(config.CategoryModeration),
		command.WithCooldown(5*time.Second),
		privileged(cmd.WithTyping()),
	)
	b.Register(&CooldownCommand{Ledger: deps.Cooldowns, Catalog: catalog},
		command.WithTier(permission.Moderator),
		command.WithCategory(config.CategoryModeration),
		command.WithAliases("cd"),
		command.WithMaxUses(3),
		privileged(),
	)
	b.Register(&ModRoleCommand{Permissions: deps.Permissions, Log: deps.Log},
		command.WithTier(permission.Administrator),
		command.WithCategory(config.CategorySettings),
		command.WithMaxUses(3),
		privileged(),
	)
	b.Register(&OwnerCommand{Permissions: deps.Permissions, Log: deps.Log},
		command.WithTier(permission.Owner),
		command.WithCategory(config.CategoryOwner),
		privileged(),
	)
}

// Build registers the built-in commands, applies policy overrides and
// returns the frozen registry.
func Build(deps Deps, policies map[string]command.Policy) (*command.Registry, error) {
	catalog := &Catalog{}
	b := command.NewBuilder()
	Register(b, deps, catalog)
	if len(policies) > 0 {
		b.ApplyPolicies(policies)
	}
	reg, err := b.Build()
	if err != nil {
		return nil, err
	}
	catalog.set(reg)
	return reg, nil
}
