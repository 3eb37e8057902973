package commands

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

// ModRoleCommand manages the roles that grant the Moderator tier in a server.
type ModRoleCommand struct {
	Permissions *permission.Resolver
	Log         *zap.Logger
}

func (c *ModRoleCommand) Name() string        { return "modrole" }
func (c *ModRoleCommand) Description() string { return "Add, remove or list moderator roles" }

const modRoleUsage = "add <role> | remove <role> | list"

func (c *ModRoleCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	if len(inv.Args) == 0 {
		return usage(ctx, inv, modRoleUsage)
	}

	switch inv.Args[0] {
	case "list":
		roles := c.Permissions.ModeratorRoles(inv.ServerID)
		if len(roles) == 0 {
			return replyText(ctx, inv, "No moderator roles configured.")
		}
		mentions := make([]string, len(roles))
		for i, r := range roles {
			mentions[i] = "<@&" + r + ">"
		}
		return replyEmbed(ctx, inv, "🛡️ Moderator Roles", strings.Join(mentions, "\n"))

	case "add", "remove":
		if len(inv.Args) < 2 {
			return usage(ctx, inv, modRoleUsage)
		}
		role := trimRoleMention(inv.Args[1])
		if role == "" {
			return usage(ctx, inv, modRoleUsage)
		}
		if inv.Args[0] == "add" {
			c.Permissions.AddModeratorRole(inv.ServerID, role)
		} else {
			c.Permissions.RemoveModeratorRole(inv.ServerID, role)
		}
		c.Log.Info("moderator role changed",
			zap.String("server", inv.ServerID),
			zap.String("role", role),
			zap.String("op", inv.Args[0]),
			zap.String("by", inv.ActorID))
		verb := "now grants"
		if inv.Args[0] == "remove" {
			verb = "no longer grants"
		}
		return replyText(ctx, inv, fmt.Sprintf("<@&%s> %s the Moderator tier.", role, verb))
	}
	return usage(ctx, inv, modRoleUsage)
}

// trimMention turns <@123> or <@!123> into 123. An empty mention yields "".
func trimMention(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	return strings.TrimSuffix(s, ">")
}

// trimRoleMention turns <@&123> into 123.
func trimRoleMention(s string) string {
	s = strings.TrimPrefix(s, "<@&")
	return strings.TrimSuffix(s, ">")
}
