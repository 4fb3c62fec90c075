package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/syncer"
)

var grantSortOrder int

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage groups and their provider access",
	Long: `List groups and maintain which providers each group may use, and in
which order of preference.

Examples:
  doctran admin groups
  doctran admin groups create "Research"
  doctran admin groups access <group-id>
  doctran admin groups grant <group-id> <provider-id>
  doctran admin groups move <group-id> 2 0`,
	RunE: runGroupsList,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	RunE:  runGroupsList,
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsCreate,
}

var groupsAccessCmd = &cobra.Command{
	Use:   "access <group-id>",
	Short: "List a group's provider grants in preference order",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsAccess,
}

var groupsGrantCmd = &cobra.Command{
	Use:   "grant <group-id> <provider-id>",
	Short: "Grant a group the use of a provider",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupsGrant,
}

var groupsRevokeCmd = &cobra.Command{
	Use:   "revoke <group-id> <provider-id>",
	Short: "Revoke a provider grant",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupsRevoke,
}

var groupsMoveCmd = &cobra.Command{
	Use:   "move <group-id> <from> <to>",
	Short: "Move a grant to a new position in the preference order",
	Args:  cobra.ExactArgs(3),
	RunE:  runGroupsMove,
}

func init() {
	groupsGrantCmd.Flags().IntVar(&grantSortOrder, "order", 0, "position in the preference order")

	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsCreateCmd)
	groupsCmd.AddCommand(groupsAccessCmd)
	groupsCmd.AddCommand(groupsGrantCmd)
	groupsCmd.AddCommand(groupsRevokeCmd)
	groupsCmd.AddCommand(groupsMoveCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	groups, err := syncClient.RefreshGroups(context.Background())
	if err != nil {
		return fmt.Errorf("list groups: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println("No groups found.")
		return nil
	}

	fmt.Printf("Groups (%d):\n\n", len(groups))
	for _, g := range groups {
		fmt.Printf("- %s  %s\n", g.ID, g.Name)
	}
	return nil
}

func runGroupsCreate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	group, err := syncClient.Coordinator.CreateGroup(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}

	fmt.Printf("Created group %s (%s)\n", group.Name, group.ID)
	return nil
}

func runGroupsAccess(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	grants, err := syncClient.RefreshGroupAccess(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list access: %w", err)
	}

	if len(grants) == 0 {
		fmt.Println("No provider grants.")
		return nil
	}

	fmt.Printf("Provider order for group %s:\n\n", args[0])
	for i, g := range grants {
		fmt.Printf("%d. %s\n", i, g.ProviderConfigID)
	}
	return nil
}

func runGroupsGrant(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	grant, err := syncClient.Coordinator.GrantAccess(context.Background(), args[0], args[1], grantSortOrder)
	if err != nil {
		return fmt.Errorf("grant access: %w", err)
	}

	fmt.Printf("Granted provider %s to group %s\n", grant.ProviderConfigID, grant.GroupID)
	return nil
}

func runGroupsRevoke(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	if err := syncClient.Coordinator.RevokeAccess(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("revoke access: %w", err)
	}

	fmt.Println("Grant revoked.")
	return nil
}

// runGroupsMove fetches the current order, relocates one grant, and submits
// the full list so the server applies the new order atomically.
func runGroupsMove(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	groupID := args[0]
	from, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[1])
	}
	to, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid position %q", args[2])
	}

	ctx := context.Background()
	grants, err := syncClient.RefreshGroupAccess(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list access: %w", err)
	}
	if from < 0 || from >= len(grants) || to < 0 || to >= len(grants) {
		return fmt.Errorf("positions must be between 0 and %d", len(grants)-1)
	}

	ids := make([]string, len(grants))
	for i, g := range grants {
		ids[i] = g.ProviderConfigID
	}
	ids = syncer.Move(ids, from, to)

	if err := syncClient.Coordinator.ReorderAccess(ctx, groupID, ids); err != nil {
		return fmt.Errorf("reorder access: %w", err)
	}

	fmt.Println("New provider order:")
	for i, id := range ids {
		fmt.Printf("%d. %s\n", i, id)
	}
	return nil
}
