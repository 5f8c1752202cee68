package cart

import (
	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/spf13/cobra"
)

var (
	eng *engine.Engine

	// CartCommands represents the cart command group
	CartCommands = &cobra.Command{
		Use:                "cart",
		Short:              "Inspect and change the cart of the current session",
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: closeEngine,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(CartCommands)

	addCmd.Flags().String("variant", "", util.WrapString("Selected options as comma-separated key=value pairs (e.g. selectedWeight=500g)"))

	CartCommands.AddCommand(showCmd)
	CartCommands.AddCommand(addCmd)
	CartCommands.AddCommand(updateCmd)
	CartCommands.AddCommand(removeCmd)
	CartCommands.AddCommand(clearCmd)
	CartCommands.AddCommand(totalCmd)
}

func setupEngine(cmd *cobra.Command, _ []string) (err error) {
	eng, err = util.OpenEngine(cmd)
	return err
}

// closeEngine flushes debounced quantity changes before the process exits
func closeEngine(cmd *cobra.Command, _ []string) error {
	return eng.Close(cmd.Context())
}
