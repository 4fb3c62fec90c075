package cli

import (
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrator operations",
	Long: `Manage provider configs, users, groups, and server settings.
All subcommands require an admin session.`,
}

func init() {
	adminCmd.AddCommand(providersCmd)
	adminCmd.AddCommand(usersCmd)
	adminCmd.AddCommand(groupsCmd)
	adminCmd.AddCommand(settingsCmd)
}
