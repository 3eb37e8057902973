package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/internal/permission"
)

// directory answers the membership questions the permission gate asks.
type directory interface {
	GuildOwner(guildID string) (string, error)
	MemberRoles(guildID, userID string) ([]string, error)
	ChannelPermissions(userID, channelID string) (int64, error)
}

// sessionDirectory reads from the state cache first and falls back to REST.
type sessionDirectory struct {
	s *discordgo.Session
}

func (d sessionDirectory) GuildOwner(guildID string) (string, error) {
	guild, err := d.s.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = d.s.Guild(guildID)
		if err != nil {
			return "", err
		}
	}
	return guild.OwnerID, nil
}

func (d sessionDirectory) MemberRoles(guildID, userID string) ([]string, error) {
	member, err := d.s.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, err = d.s.GuildMember(guildID, userID)
		if err != nil {
			return nil, err
		}
	}
	return member.Roles, nil
}

func (d sessionDirectory) ChannelPermissions(userID, channelID string) (int64, error) {
	return d.s.UserChannelPermissions(userID, channelID)
}

// membershipFor resolves the author of m lazily, only when a gate needs it.
func membershipFor(dir directory, m *discordgo.Message) dispatch.MembershipFunc {
	return func(context.Context) (permission.Actor, error) {
		actor := permission.Actor{ID: m.Author.ID, ServerID: m.GuildID}

		owner, err := dir.GuildOwner(m.GuildID)
		if err != nil {
			return actor, fmt.Errorf("guild %s: %w", m.GuildID, err)
		}
		actor.ServerOwnerID = owner

		// Gateway messages carry a partial member with the role list.
		if m.Member != nil && m.Member.Roles != nil {
			actor.RoleIDs = m.Member.Roles
		} else if actor.RoleIDs, err = dir.MemberRoles(m.GuildID, m.Author.ID); err != nil {
			return actor, fmt.Errorf("member %s: %w", m.Author.ID, err)
		}

		if actor.Permissions, err = dir.ChannelPermissions(m.Author.ID, m.ChannelID); err != nil {
			return actor, fmt.Errorf("permissions in %s: %w", m.ChannelID, err)
		}
		return actor, nil
	}
}
