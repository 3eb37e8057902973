package permission

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Tier is the ordinal permission level a command requires. Higher is stricter.
type Tier int

const (
	Everyone Tier = iota
	Moderator
	Administrator
	ServerOwner
	Owner
)

var tierNames = map[Tier]string{
	Everyone:      "Everyone",
	Moderator:     "Moderator",
	Administrator: "Administrator",
	ServerOwner:   "Server Owner",
	Owner:         "Bot Owner",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the declared tiers.
func (t Tier) Valid() bool {
	return t >= Everyone && t <= Owner
}

// ParseTier parses the config spelling of a tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "everyone", "":
		return Everyone, nil
	case "moderator", "mod":
		return Moderator, nil
	case "administrator", "admin":
		return Administrator, nil
	case "server_owner", "server-owner", "serverowner":
		return ServerOwner, nil
	case "owner", "bot_owner", "bot-owner":
		return Owner, nil
	}
	return Everyone, fmt.Errorf("unknown permission tier %q", s)
}

// UnmarshalText lets tiers be read straight from YAML and env values.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// tierPermissions maps a tier to the platform permission bits that grant it.
// Server owner and bot owner are identity facts, so their sets are empty.
var tierPermissions = map[Tier]int64{
	Everyone:      0,
	Moderator:     discordgo.PermissionKickMembers | discordgo.PermissionBanMembers | discordgo.PermissionManageMessages,
	Administrator: discordgo.PermissionAdministrator,
	ServerOwner:   0,
	Owner:         0,
}

// Permissions returns the platform permission set mapped to t.
func (t Tier) Permissions() int64 {
	return tierPermissions[t]
}
