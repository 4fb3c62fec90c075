package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mfloris/doctran/internal/api"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in to the translation server and store the session token in the
config file for subsequent commands.

Examples:
  doctran login --email alice@example.com
  doctran login`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget the stored token",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in account",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := loginEmail
	if email == "" {
		fmt.Print("Email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	ctx := context.Background()
	user, token, err := apiClient.Login(ctx, email, string(password))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cfg.Email = user.Email
	cfg.Token = token
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	fmt.Printf("Logged in as %s (%s)\n", user.Email, user.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if cfg.Token != "" {
		// Best effort: the stored session is cleared either way.
		if err := apiClient.Logout(context.Background()); err != nil {
			logger.Warn("server logout failed", "error", err)
		}
	}

	cfg.Token = ""
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	fmt.Println("Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	user, err := apiClient.Me(context.Background())
	if errors.Is(err, api.ErrSessionExpired) {
		return fmt.Errorf("session expired, run 'doctran login' again")
	}
	if err != nil {
		return fmt.Errorf("fetch account: %w", err)
	}

	fmt.Printf("%s (%s)\n", user.Email, user.Role)
	if verbose {
		fmt.Printf("  ID:    %s\n", user.ID)
		fmt.Printf("  Name:  %s\n", user.Name)
		if user.Role == api.RoleUser {
			fmt.Printf("  Daily page limit: %d\n", user.DailyPageLimit)
		}
	}
	return nil
}
