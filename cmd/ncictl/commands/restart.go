package commands

import (
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Reset the controller and bring it back to RFST_IDLE",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := openCore()
		if err != nil {
			return err
		}
		defer closer()

		if err := bootstrap(core); err != nil {
			return err
		}
		cmd.Printf("Controller reset; state: %s\n", core.CurrentState())
		return nil
	},
}
