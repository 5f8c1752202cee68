package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/dShop/cmd/cart"
	"github.com/ValentinKolb/dShop/cmd/checkout"
	"github.com/ValentinKolb/dShop/cmd/products"
	"github.com/ValentinKolb/dShop/cmd/resync"
	"github.com/ValentinKolb/dShop/cmd/session"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dshop",
		Short: "storefront data synchronization client",
		Long: fmt.Sprintf(`dShop (v%s)

A client for a storefront REST API that keeps a local snapshot of the
catalog and the cart, caches responses, applies cart changes optimistically
and keeps an anonymous shopper session across runs.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dShop",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dShop v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(products.ProductCommands)
	RootCmd.AddCommand(cart.CartCommands)
	RootCmd.AddCommand(session.SessionCommands)
	RootCmd.AddCommand(checkout.CheckoutCommands)
	RootCmd.AddCommand(resync.SyncCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// An interrupt cancels the context of the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
