// Package permission decides whether an actor holds the tier a command requires.
package permission

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/keshon/rickbot/pkg/cmd"
)

// EmbedColor is used for denial feedback.
const EmbedColor = 0xff0000

// PermissionNames names the platform bits that appear in tier permission sets.
var PermissionNames = map[int64]string{
	discordgo.PermissionKickMembers:    "Kick Members",
	discordgo.PermissionBanMembers:     "Ban Members",
	discordgo.PermissionManageMessages: "Manage Messages",
	discordgo.PermissionAdministrator:  "Administrator",
}

// Actor is what the resolver knows about an actor inside one server.
type Actor struct {
	ID            string
	ServerID      string
	ServerOwnerID string
	RoleIDs       []string
	Permissions   int64
}

// Resolver owns the bot owner identity and per-server moderator role sets.
// It is safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	owner    string
	modRoles map[string]map[string]struct{}
	log      *zap.Logger
}

// NewResolver returns a resolver with the given bot owner (may be empty).
func NewResolver(ownerID string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		owner:    ownerID,
		modRoles: make(map[string]map[string]struct{}),
		log:      log,
	}
}

// SetOwner replaces the bot-wide owner.
func (r *Resolver) SetOwner(actorID string) {
	r.mu.Lock()
	r.owner = actorID
	r.mu.Unlock()
	r.log.Info("bot owner set", zap.String("actor", actorID))
}

// Owner returns the configured bot owner.
func (r *Resolver) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// AddModeratorRole marks roleID as a moderator role in serverID. Adding a present role is a no-op.
func (r *Resolver) AddModeratorRole(serverID, roleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roles, ok := r.modRoles[serverID]
	if !ok {
		roles = make(map[string]struct{})
		r.modRoles[serverID] = roles
	}
	if _, exists := roles[roleID]; exists {
		return
	}
	roles[roleID] = struct{}{}
	r.log.Info("moderator role added", zap.String("server", serverID), zap.String("role", roleID))
}

// RemoveModeratorRole unmarks roleID. Removing an absent role is a no-op.
func (r *Resolver) RemoveModeratorRole(serverID, roleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roles, ok := r.modRoles[serverID]
	if !ok {
		return
	}
	if _, exists := roles[roleID]; !exists {
		return
	}
	delete(roles, roleID)
	if len(roles) == 0 {
		delete(r.modRoles, serverID)
	}
	r.log.Info("moderator role removed", zap.String("server", serverID), zap.String("role", roleID))
}

// ModeratorRoles returns the moderator roles of serverID, sorted.
func (r *Resolver) ModeratorRoles(serverID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.modRoles[serverID]))
	for id := range r.modRoles[serverID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// HasTier reports whether actor satisfies required. The chain is
// bot owner -> server owner -> moderator roles -> platform permission set.
func (r *Resolver) HasTier(actor Actor, required Tier) bool {
	if required == Everyone {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.owner != "" && actor.ID == r.owner {
		return true
	}
	if required <= ServerOwner && actor.ServerOwnerID != "" && actor.ID == actor.ServerOwnerID {
		return true
	}
	if required == Owner {
		return false
	}

	if required == Moderator {
		roles := r.modRoles[actor.ServerID]
		for _, id := range actor.RoleIDs {
			if _, ok := roles[id]; ok {
				return true
			}
		}
	}

	needed := required.Permissions()
	return needed != 0 && actor.Permissions&needed == needed
}

// DenyFeedback tells the actor which tier the command needs. Delivery failures are logged.
func (r *Resolver) DenyFeedback(ctx context.Context, replier cmd.Replier, required Tier) {
	embed := &cmd.Embed{
		Title:       "Permission Denied",
		Description: fmt.Sprintf("You need %s permissions to use this command.", required),
		Color:       EmbedColor,
	}
	if names := permissionList(required.Permissions()); names != "" {
		embed.Footer = "Granted by: " + names
	}

	if err := replier.Reply(ctx, cmd.Reply{Embed: embed}); err != nil {
		r.log.Error("failed to send permission denied message", zap.Stringer("tier", required), zap.Error(err))
	}
}

func permissionList(bits int64) string {
	if bits == 0 {
		return ""
	}
	var names []string
	for bit, name := range PermissionNames {
		if bits&bit != 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
