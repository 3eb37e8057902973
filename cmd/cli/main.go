// cmd/cli/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/keshon/rickbot/internal/bot"
	"github.com/keshon/rickbot/internal/config"
	"github.com/keshon/rickbot/internal/console"
	"github.com/keshon/rickbot/internal/logging"
)

var (
	actorID     string
	actorName   string
	serverID    string
	serverOwner string
	roleIDs     []string
	perms       []string
	verbose     bool
)

// permFlags maps --perms values to platform permission bits.
var permFlags = map[string]int64{
	"kick":            discordgo.PermissionKickMembers,
	"ban":             discordgo.PermissionBanMembers,
	"manage-messages": discordgo.PermissionManageMessages,
	"admin":           discordgo.PermissionAll,
}

var rootCmd = &cobra.Command{
	Use:   "rickbot-cli",
	Short: "Talk to rickbot from a terminal",
	Long: `Reads chat messages from stdin, one per line, runs them through the same
command pipeline as the Discord bot and prints replies to stdout.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Verbose = true
		}

		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Verbose: cfg.Verbose, File: cfg.LogFile})
		if err != nil {
			return err
		}
		defer logging.Install(logger)()

		var bits int64
		for _, p := range perms {
			bit, ok := permFlags[p]
			if !ok {
				return fmt.Errorf("unknown permission %q", p)
			}
			bits |= bit
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := bot.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.StartJobs(); err != nil {
			return err
		}

		s := &console.Session{
			Dispatcher: app.Dispatcher,
			Identity: console.Identity{
				ActorID:       actorID,
				ActorName:     actorName,
				ServerID:      serverID,
				ServerOwnerID: serverOwner,
				RoleIDs:       roleIDs,
				Permissions:   bits,
			},
			In:  cmd.InOrStdin(),
			Out: cmd.OutOrStdout(),
		}
		return s.Run(ctx)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&actorID, "actor", "console", "actor ID the messages come from")
	f.StringVar(&actorName, "name", "console", "display name of the actor")
	f.StringVar(&serverID, "server", "", "simulated server ID (empty for a direct conversation)")
	f.StringVar(&serverOwner, "server-owner", "", "owner ID of the simulated server")
	f.StringSliceVar(&roleIDs, "roles", nil, "role IDs the actor holds in the server")
	f.StringSliceVar(&perms, "perms", nil, "permissions the actor holds: kick, ban, manage-messages, admin")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
