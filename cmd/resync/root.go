package resync

import (
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/dataservice"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/ValentinKolb/dShop/lib/model"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
)

var (
	eng *engine.Engine

	// SyncCmd loads the app data snapshot, optionally keeping it in sync
	SyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local snapshot with the API",
		Long: `Loads the catalog and the cart into the local snapshot. With --watch the
command keeps running, resynchronizes in the background and prints the
gateway and data service metrics every --report seconds until interrupted.`,
		Args:               cobra.NoArgs,
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: closeEngine,
		RunE:               run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(SyncCmd)

	SyncCmd.Flags().Bool("force", false, util.WrapString("Drop all cached responses and reload even if the local snapshot is still fresh"))
	SyncCmd.Flags().Bool("watch", false, util.WrapString("Keep running and resynchronize in the background"))
	SyncCmd.Flags().Int("report", 60, util.WrapString("Seconds between metric reports in watch mode"))
}

func setupEngine(cmd *cobra.Command, _ []string) (err error) {
	eng, err = util.OpenEngine(cmd)
	return err
}

func closeEngine(cmd *cobra.Command, _ []string) error {
	return eng.Close(cmd.Context())
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")
	watch, _ := cmd.Flags().GetBool("watch")
	report, _ := cmd.Flags().GetInt("report")

	var (
		snap model.Snapshot
		err  error
	)
	if force {
		snap, err = eng.Data.Refresh(ctx)
	} else {
		snap, err = eng.Data.LoadAppData(ctx, false)
	}
	if err != nil {
		return err
	}
	fmt.Printf("synced %d products (%d featured, %d categories) and %d cart items at %s\n",
		len(snap.Products), len(snap.FeaturedProducts), len(snap.Categories), len(snap.CartItems),
		snap.LastFullSyncAt.Format(time.RFC3339))

	if !watch {
		printMetrics()
		return nil
	}
	if report <= 0 {
		return fmt.Errorf("report interval must be positive, got %d", report)
	}

	unsubscribe := eng.Data.Subscribe(func(ev dataservice.Event) {
		if ev.Type == dataservice.EventSnapshot {
			c := eng.Data.CachedData()
			fmt.Printf("snapshot updated: %d products, %d cart items\n", len(c.Products), len(c.CartItems))
		}
	})
	defer unsubscribe()

	eng.Start(ctx)
	ticker := time.NewTicker(time.Duration(report) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			printMetrics()
			return nil
		case <-ticker.C:
			printMetrics()
		}
	}
}

func printMetrics() {
	fmt.Println("\nGATEWAY")
	eng.Gateway.WriteMetrics(os.Stdout)
	fmt.Println("\nDATA SERVICE")
	gometrics.WriteOnce(eng.Metrics, os.Stdout)
}
