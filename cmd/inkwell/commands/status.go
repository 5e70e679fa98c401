package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/inkwell-press/inkwell/internal/database"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pool statistics from a running service",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("addr", "http://localhost:8090", "Monitoring server address")
}

type statsPayload struct {
	Snapshot database.PoolSnapshot `json:"snapshot"`
	Process  struct {
		CPUPercent float64 `json:"cpu_percent"`
		RSSBytes   uint64  `json:"rss_bytes"`
		Goroutines int     `json:"goroutines"`
	} `json:"process"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/stats")
	if err != nil {
		return fmt.Errorf("failed to reach monitoring server: %w", err)
	}
	defer resp.Body.Close()

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode stats: %w", err)
	}

	snap := payload.Snapshot
	fmt.Printf("Connections: %d total, %d active, %d idle\n",
		snap.TotalConnections, snap.ActiveConnections, snap.IdleConnections)
	fmt.Printf("Lifetime:    %s created, %s destroyed, %s reused\n",
		humanize.Comma(int64(snap.ConnectionsCreated)),
		humanize.Comma(int64(snap.ConnectionsDestroyed)),
		humanize.Comma(int64(snap.ConnectionsReused)))
	fmt.Printf("Acquisition: %s timeouts, %.2fms avg wait\n",
		humanize.Comma(int64(snap.AcquireTimeouts)), snap.AvgWaitTimeMs)
	fmt.Printf("Queries:     %s observed, %.2fms avg, %.2fms max\n",
		humanize.Comma(int64(snap.QueriesObserved)), snap.AvgQueryTimeMs, snap.MaxQueryTimeMs)
	fmt.Printf("Cache:       %s entries, %.0f%% hit rate\n",
		humanize.Comma(int64(snap.CacheEntries)), snap.CacheHitRate*100)
	fmt.Printf("Process:     %.1f%% cpu, %s rss, %d goroutines\n",
		payload.Process.CPUPercent,
		humanize.Bytes(payload.Process.RSSBytes),
		payload.Process.Goroutines)
	return nil
}
