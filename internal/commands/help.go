package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/keshon/rickbot/internal/command"
	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/dispatch"
	"github.com/keshon/rickbot/internal/permission"
	"github.com/keshon/rickbot/pkg/cmd"
)

// HelpCommand lists the commands the caller may run, grouped by category.
type HelpCommand struct {
	Catalog     *Catalog
	Permissions *permission.Resolver
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Get a complete list of bot commands" }

func (c *HelpCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	actor, err := dispatch.Caller(ctx, inv.ActorID, inv.ServerID)
	if err != nil {
		return fmt.Errorf("resolve caller: %w", err)
	}

	var visible []command.Descriptor
	for _, d := range c.Catalog.All() {
		if c.Permissions == nil || c.Permissions.HasTier(actor, d.Tier) {
			visible = append(visible, d)
		}
	}

	return inv.Reply(ctx, cmd.Reply{
		Content: rickrollGifURL,
		Embed: &cmd.Embed{
			Title:       "📖 Available Commands",
			Description: buildHelpMessage(inv.Prefix, visible),
			Color:       embedColor,
		},
	})
}

func buildHelpMessage(prefix string, descs []command.Descriptor) string {
	categoryMap := make(map[string][]command.Descriptor)
	var cats []string
	for _, d := range descs {
		if _, ok := categoryMap[d.Category]; !ok {
			cats = append(cats, d.Category)
		}
		categoryMap[d.Category] = append(categoryMap[d.Category], d)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := config.CategoryWeight(cats[i]), config.CategoryWeight(cats[j])
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	var sb strings.Builder
	for _, cat := range cats {
		if cat != "" {
			sb.WriteString(fmt.Sprintf("**%s**\n", cat))
		}
		for _, d := range categoryMap[cat] {
			sb.WriteString(fmt.Sprintf("`%s%s` - %s", prefix, d.Name(), d.Command.Description()))
			if d.Tier > permission.Everyone {
				sb.WriteString(fmt.Sprintf(" _(%s)_", d.Tier))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
