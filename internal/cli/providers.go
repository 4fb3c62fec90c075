package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/syncer"
)

var (
	providerType        string
	providerName        string
	providerDescription string
	providerSettings    string
	providerActive      bool
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage translation provider configs",
	Long: `List and maintain provider configs.

Examples:
  doctran admin providers
  doctran admin providers create "Google MT" --type google
  doctran admin providers update <id> --inactive
  doctran admin providers watch`,
	RunE: runProvidersList,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provider configs",
	RunE:  runProvidersList,
}

var providersCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Register a provider config",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersCreate,
}

var providersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a provider config",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersUpdate,
}

var providersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a provider config",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersDelete,
}

var providersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream provider changes live",
	RunE:  runProvidersWatch,
}

func init() {
	providersCreateCmd.Flags().StringVarP(&providerType, "type", "t", "", "provider type (google, deepl, openai, ...)")
	providersCreateCmd.Flags().StringVarP(&providerDescription, "description", "d", "", "description")
	providersCreateCmd.Flags().StringVar(&providerSettings, "settings", "", "provider settings as JSON")
	providersCreateCmd.Flags().BoolVar(&providerActive, "active", true, "whether the provider is active")

	providersUpdateCmd.Flags().StringVar(&providerName, "name", "", "display name")
	providersUpdateCmd.Flags().StringVarP(&providerDescription, "description", "d", "", "description")
	providersUpdateCmd.Flags().StringVar(&providerSettings, "settings", "", "provider settings as JSON")
	providersUpdateCmd.Flags().BoolVar(&providerActive, "active", true, "whether the provider is active")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersCreateCmd)
	providersCmd.AddCommand(providersUpdateCmd)
	providersCmd.AddCommand(providersDeleteCmd)
	providersCmd.AddCommand(providersWatchCmd)
}

func parseProviderSettings() (map[string]any, error) {
	if providerSettings == "" {
		return nil, nil
	}
	var settings map[string]any
	if err := json.Unmarshal([]byte(providerSettings), &settings); err != nil {
		return nil, fmt.Errorf("parse --settings: %w", err)
	}
	return settings, nil
}

func printProvider(p api.ProviderConfig) {
	state := "active"
	if !p.IsActive {
		state = "inactive"
	}
	defaultMark := ""
	if p.IsDefault {
		defaultMark = " [default]"
	}
	fmt.Printf("- %s  %s (%s, %s)%s\n", p.ID, p.Name, p.ProviderType, state, defaultMark)
	if verbose && p.Description != "" {
		fmt.Printf("  %s\n", p.Description)
	}
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	providers, err := syncClient.RefreshProviders(context.Background())
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Println("No provider configs found.")
		return nil
	}

	fmt.Printf("Providers (%d):\n\n", len(providers))
	for _, p := range providers {
		printProvider(p)
	}
	return nil
}

func runProvidersCreate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	settings, err := parseProviderSettings()
	if err != nil {
		return err
	}

	provider, err := syncClient.Coordinator.CreateProvider(context.Background(), api.CreateProviderInput{
		Name:         args[0],
		ProviderType: providerType,
		Description:  providerDescription,
		IsActive:     providerActive,
		Settings:     settings,
	})
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	fmt.Printf("Created provider %s (%s)\n", provider.Name, provider.ID)
	return nil
}

func runProvidersUpdate(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	settings, err := parseProviderSettings()
	if err != nil {
		return err
	}

	input := api.UpdateProviderInput{Settings: settings}
	if cmd.Flags().Changed("name") {
		input.Name = &providerName
	}
	if cmd.Flags().Changed("description") {
		input.Description = &providerDescription
	}
	if cmd.Flags().Changed("active") {
		input.IsActive = &providerActive
	}

	provider, err := syncClient.Coordinator.UpdateProvider(context.Background(), args[0], input)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}

	fmt.Printf("Updated provider %s\n", provider.Name)
	return nil
}

func runProvidersDelete(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	if err := syncClient.Coordinator.DeleteProvider(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}

	fmt.Println("Provider deleted.")
	return nil
}

// runProvidersWatch seeds the provider snapshot, then keeps it current over
// the push channel, reprinting on every change until interrupted.
func runProvidersWatch(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := syncClient.RefreshProviders(ctx); err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	channel := syncClient.AdminChannel()
	channel.Start()
	defer channel.Stop()

	fmt.Println("Watching provider changes (Ctrl+C to stop)...")
	printProviderSnapshot()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	version := syncClient.Store.Version(syncer.KeyProviders)
	for {
		select {
		case <-interrupt:
			return nil
		case <-ticker.C:
			if v := syncClient.Store.Version(syncer.KeyProviders); v != version {
				version = v
				printProviderSnapshot()
			}
		}
	}
}

func printProviderSnapshot() {
	providers, ok := syncer.Providers(syncClient.Store).Read()
	if !ok {
		return
	}
	fmt.Printf("\nProviders (%d):\n", len(providers))
	for _, p := range providers {
		printProvider(p)
	}
}
