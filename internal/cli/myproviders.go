package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var myProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the translation providers available to you",
	Long: `List the provider configs your account may translate with, in the
order the server prefers them. Use a provider's id with
'doctran tasks create --provider <id>'.`,
	RunE: runMyProviders,
}

func runMyProviders(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	providers, err := apiClient.MyProviders(context.Background())
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Println("No providers available.")
		return nil
	}

	fmt.Printf("Available providers (%d):\n\n", len(providers))
	for _, p := range providers {
		printProvider(p)
	}
	return nil
}
