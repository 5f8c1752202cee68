package products

import (
	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/spf13/cobra"
)

var (
	eng *engine.Engine

	// ProductCommands represents the catalog command group
	ProductCommands = &cobra.Command{
		Use:                "products",
		Short:              "Browse the product catalog",
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: closeEngine,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(ProductCommands)

	listCmd.Flags().String("category", "", util.WrapString("Only list products of this category (case-insensitive)"))

	ProductCommands.AddCommand(listCmd)
	ProductCommands.AddCommand(featuredCmd)
	ProductCommands.AddCommand(categoriesCmd)
	ProductCommands.AddCommand(getCmd)
	ProductCommands.AddCommand(searchCmd)
	ProductCommands.AddCommand(recentCmd)
}

func setupEngine(cmd *cobra.Command, _ []string) (err error) {
	eng, err = util.OpenEngine(cmd)
	return err
}

func closeEngine(cmd *cobra.Command, _ []string) error {
	return eng.Close(cmd.Context())
}
