package session

import (
	"fmt"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/spf13/cobra"
)

var (
	eng *engine.Engine

	// SessionCommands represents the session command group
	SessionCommands = &cobra.Command{
		Use:                "session",
		Short:              "Manage the anonymous shopper session",
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: closeEngine,
	}

	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Prints the session id (creating one if none exists)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(eng.Session.ID())
		},
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Replaces the session id with a new one",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(eng.Session.Refresh())
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes the session id from all storage locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			eng.Session.Clear()
			fmt.Println("session cleared")
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(SessionCommands)

	SessionCommands.AddCommand(showCmd)
	SessionCommands.AddCommand(refreshCmd)
	SessionCommands.AddCommand(clearCmd)
}

func setupEngine(cmd *cobra.Command, _ []string) (err error) {
	eng, err = util.OpenEngine(cmd)
	return err
}

func closeEngine(cmd *cobra.Command, _ []string) error {
	return eng.Close(cmd.Context())
}
