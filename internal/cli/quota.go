package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/syncer"
)

var quotaWatch bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show your daily page quota",
	Long: `Show how much of the daily page quota is used.

Examples:
  doctran quota
  doctran quota --watch`,
	RunE: runQuota,
}

func init() {
	quotaCmd.Flags().BoolVarP(&quotaWatch, "watch", "w", false, "keep the quota display live")
}

func runQuota(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	if quotaWatch {
		return runQuotaWatch()
	}

	quota, err := apiClient.MyQuota(context.Background())
	if err != nil {
		return fmt.Errorf("fetch quota: %w", err)
	}

	printQuota(*quota)
	return nil
}

// runQuotaWatch joins the quota poll and reprints on every change until
// interrupted.
func runQuotaWatch() error {
	unsubscribe := syncClient.SubscribeQuota()
	defer unsubscribe()

	fmt.Println("Watching quota (Ctrl+C to stop)...")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var version uint64
	for {
		select {
		case <-interrupt:
			return nil
		case <-ticker.C:
			if v := syncClient.Store.Version(syncer.KeyQuota); v != version {
				version = v
				if quotas, ok := syncer.Quota(syncClient.Store).Read(); ok && len(quotas) > 0 {
					printQuota(quotas[0])
				}
			}
		}
	}
}

func printQuota(quota api.Quota) {
	fmt.Printf("Daily pages: %d/%d used, %d remaining\n",
		quota.DailyPageUsed, quota.DailyPageLimit, quota.Remaining)
	if verbose && quota.LastQuotaReset != "" {
		fmt.Printf("  Last reset: %s\n", quota.LastQuotaReset)
	}
}
