package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/metrics"
	"github.com/mfloris/doctran/internal/syncer"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server queue pressure and client sync counters",
	Long: `Show the server's translation queue depth and, with --verbose, the
client's own sync counters.

Examples:
  doctran status
  doctran status --watch`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "keep the queue display live")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}

	if statusWatch {
		return runStatusWatch()
	}

	perf, err := apiClient.GetPerformanceMetrics(context.Background())
	if err != nil {
		return fmt.Errorf("fetch metrics: %w", err)
	}

	printQueue(*perf)
	if verbose {
		printSyncCounters()
	}
	return nil
}

// runStatusWatch joins the performance metrics poll and reprints the queue
// summary on every change until interrupted.
func runStatusWatch() error {
	unsubscribe := syncClient.SubscribeMetrics()
	defer unsubscribe()

	fmt.Println("Watching server queue (Ctrl+C to stop)...")

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
			if v := syncClient.Store.Version(syncer.KeyMetrics); v != version {
				version = v
				if snapshots, ok := syncer.Metrics(syncClient.Store).Read(); ok && len(snapshots) > 0 {
					printQueue(snapshots[0])
				}
			}
		}
	}
}

func printQueue(perf api.PerformanceMetrics) {
	fmt.Println("Server queue:")
	fmt.Printf("  Active:  %d (max %d)\n", perf.ActiveTasks, perf.CurrentConfig.MaxConcurrentTasks)
	fmt.Printf("  Queued:  %d (high %d, normal %d, low %d)\n",
		perf.QueuedTasks, perf.HighPriorityQueue, perf.NormalPriorityQueue, perf.LowPriorityQueue)
}

func printSyncCounters() {
	snapshot := syncClient.Collector.Snapshot()
	fmt.Println("\nClient sync counters:")
	fmt.Printf("  Uptime:      %.0fs\n", snapshot.UptimeSeconds)
	fmt.Printf("  Push events: %d applied, %d dropped\n", snapshot.PushEvents, snapshot.DroppedEvents)
	fmt.Printf("  Reconnects:  %d\n", snapshot.Reconnects)
	printOpSnapshot("Polls", snapshot.Polls)
	printOpSnapshot("Mutations", snapshot.Mutations)
}

func printOpSnapshot(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	fmt.Printf("  %-12s %d calls, %d failed, avg %.1fms\n", name+":", op.Count, op.Failures, op.AvgTimeMs)
}
