package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfcgo/ncicore/pkg/nci"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

var (
	discoverOnce    bool
	discoverTimeout time.Duration
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Start RF discovery and report activated targets",
	Long: `discover bootstraps the controller, enters RFST_DISCOVERY, and prints the
decoded activation parameters of every target the NFCC activates. After each
activation the target is deactivated back to discovery so polling continues.

Runs until interrupted, --timeout elapses, or (with --once) the first target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := openCore()
		if err != nil {
			return err
		}
		defer closer()

		if err := bootstrap(core); err != nil {
			return err
		}

		activated := make(chan nci.IntfActivatedEvent, 4)
		sub := core.SubscribeIntfActivated(func(ev nci.IntfActivatedEvent) {
			select {
			case activated <- ev:
			default:
			}
		})
		defer core.Unsubscribe(sub)

		if ok, err := core.SetState(nci.StateDiscovery); err != nil || !ok {
			return fmt.Errorf("entering discovery: %w", err)
		}
		if err := waitForState(core, nci.StateDiscovery, bootstrapTimeout); err != nil {
			return err
		}
		cmd.Println("Polling for targets (Ctrl+C to stop)...")

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(interrupt)

		var deadline <-chan time.Time
		if discoverTimeout > 0 {
			timer := time.NewTimer(discoverTimeout)
			defer timer.Stop()
			deadline = timer.C
		}

		for {
			select {
			case ev := <-activated:
				printActivation(cmd, ev)
				if discoverOnce {
					return nil
				}
				// Drop the target and resume polling.
				if ok, err := core.SetState(nci.StateDiscovery); err != nil || !ok {
					return fmt.Errorf("resuming discovery: %w", err)
				}
				if err := waitForState(core, nci.StateDiscovery, bootstrapTimeout); err != nil {
					return err
				}
			case <-interrupt:
				cmd.Println("\nStopping.")
				return nil
			case <-deadline:
				return nil
			}
		}
	},
}

func printActivation(cmd *cobra.Command, ev nci.IntfActivatedEvent) {
	table := newKVTable(cmd)
	table.Append([]string{"Discovery ID", fmt.Sprintf("%d", ev.DiscoveryID)})
	table.Append([]string{"RF interface", rfInterfaceName(ev.RFInterface)})
	table.Append([]string{"Protocol", fmt.Sprintf("0x%02x", uint8(ev.Protocol))})
	table.Append([]string{"Mode", fmt.Sprintf("0x%02x", uint8(ev.Mode))})
	table.Append([]string{"Max data packet", fmt.Sprintf("%d bytes", ev.MaxDataPacketSize)})
	table.Append([]string{"Initial credits", fmt.Sprintf("%d", ev.NumCredits)})
	if ev.ModeParam != nil {
		pa := ev.ModeParam.PollA
		table.Append([]string{"SENS_RES", hex.EncodeToString(pa.SensRes[:])})
		table.Append([]string{"NFCID1", hex.EncodeToString(pa.NFCID1)})
		if pa.HasSelRes {
			table.Append([]string{"SEL_RES", fmt.Sprintf("0x%02x", pa.SelRes)})
		}
	}
	if ev.ActivationParam != nil && ev.RFInterface == codec.RFInterfaceISODep {
		iso := ev.ActivationParam.ISODepPollA
		table.Append([]string{"FSC", fmt.Sprintf("%d bytes", iso.FSC)})
		table.Append([]string{"Historical bytes", hex.EncodeToString(iso.T1)})
	}
	cmd.Println("\nTarget activated:")
	table.Render()
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverOnce, "once", false, "Exit after the first activated target")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Stop polling after this duration (0 = run until interrupted)")
}
