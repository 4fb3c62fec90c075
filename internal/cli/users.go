package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
)

var (
	userName     string
	userPassword string
	userRole     string
	userGroup    string
	userLimit    int
	userActive   bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
	Long: `List and maintain user accounts.

Examples:
  doctran admin users
  doctran admin users create bob@example.com --password s3cret
  doctran admin users quota <id> 500`,
	RunE: runUsersList,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Register an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersCreate,
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersUpdate,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersQuotaCmd = &cobra.Command{
	Use:   "quota <id> <daily-page-limit>",
	Short: "Set an account's daily page limit",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersQuota,
}

func init() {
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	usersCreateCmd.Flags().StringVar(&userRole, "role", api.RoleUser, "role (user, admin)")
	usersCreateCmd.Flags().StringVar(&userGroup, "group", "", "group id")
	usersCreateCmd.Flags().IntVar(&userLimit, "limit", 0, "daily page limit (0 uses the server default)")

	usersUpdateCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersUpdateCmd.Flags().StringVar(&userRole, "role", "", "role (user, admin)")
	usersUpdateCmd.Flags().StringVar(&userGroup, "group", "", "group id")
	usersUpdateCmd.Flags().BoolVar(&userActive, "active", true, "whether the account is active")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersUpdateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersQuotaCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	users, err := syncClient.RefreshUsers(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	fmt.Printf("Users (%d):\n\n", len(users))
	for _, u := range users {
		state := ""
		if !u.IsActive {
			state = " [disabled]"
		}
		fmt.Printf("- %s  %s (%s)%s\n", u.ID, u.Email, u.Role, state)
		if verbose {
			fmt.Printf("  Pages: %d/%d used\n", u.DailyPageUsed, u.DailyPageLimit)
		}
	}
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	user, err := syncClient.Coordinator.CreateUser(context.Background(), api.CreateUserInput{
		Email:          args[0],
		Name:           userName,
		Password:       userPassword,
		Role:           userRole,
		GroupID:        userGroup,
		DailyPageLimit: userLimit,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created account %s (%s)\n", user.Email, user.ID)
	return nil
}

func runUsersUpdate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	var input api.UpdateUserInput
	if cmd.Flags().Changed("name") {
		input.Name = &userName
	}
	if cmd.Flags().Changed("role") {
		input.Role = &userRole
	}
	if cmd.Flags().Changed("group") {
		input.GroupID = &userGroup
	}
	if cmd.Flags().Changed("active") {
		input.IsActive = &userActive
	}

	user, err := syncClient.Coordinator.UpdateUser(context.Background(), args[0], input)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	fmt.Printf("Updated account %s\n", user.Email)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	if err := syncClient.Coordinator.DeleteUser(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	fmt.Println("Account deleted.")
	return nil
}

func runUsersQuota(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	var limit int
	if _, err := fmt.Sscanf(args[1], "%d", &limit); err != nil {
		return fmt.Errorf("invalid page limit %q", args[1])
	}

	user, err := syncClient.Coordinator.UpdateUserQuota(context.Background(), args[0], limit)
	if err != nil {
		return fmt.Errorf("update quota: %w", err)
	}

	fmt.Printf("Set daily page limit for %s to %d\n", user.Email, user.DailyPageLimit)
	return nil
}
