package commands

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfcgo/ncicore/internal/bytesize"
	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/pkg/nci"
	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

var (
	sendDataCID     uint8
	sendDataTimeout time.Duration
)

var sendDataCmd = &cobra.Command{
	Use:   "send-data <hex-payload>",
	Short: "Exchange raw data with the first activated target",
	Long: `send-data bootstraps the controller, polls until a target activates, sends
the given hex-encoded payload on the static RF connection, and prints the
target's reply.

For an ISO-DEP target the payload is an ISO 7816 APDU, e.g.:

  ncictl send-data 00a404000e325041592e5359532e444446303100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("payload is not valid hex: %w", err)
		}

		core, closer, err := openCore()
		if err != nil {
			return err
		}
		defer closer()

		if err := bootstrap(core); err != nil {
			return err
		}

		activated := make(chan nci.IntfActivatedEvent, 1)
		actSub := core.SubscribeIntfActivated(func(ev nci.IntfActivatedEvent) {
			select {
			case activated <- ev:
			default:
			}
		})
		defer core.Unsubscribe(actSub)

		reply := make(chan nci.DataPacketEvent, 4)
		dataSub := core.SubscribeDataPacket(func(ev nci.DataPacketEvent) {
			if ev.CID == sendDataCID {
				select {
				case reply <- ev:
				default:
				}
			}
		})
		defer core.Unsubscribe(dataSub)

		if ok, err := core.SetState(nci.StateDiscovery); err != nil || !ok {
			return fmt.Errorf("entering discovery: %w", err)
		}

		cmd.Println("Waiting for a target...")
		var ev nci.IntfActivatedEvent
		select {
		case ev = <-activated:
		case <-time.After(sendDataTimeout):
			return fmt.Errorf("no target activated within %s", sendDataTimeout)
		}
		cmd.Printf("Target activated (discovery ID %d, %s)\n", ev.DiscoveryID, rfInterfaceName(ev.RFInterface))

		logger.Debug("sending data", "cid", sendDataCID, "size", bytesize.ByteSize(len(payload)))
		sent := make(chan bool, 1)
		if _, err := core.SendData(sendDataCID, payload, func(success bool) { sent <- success }); err != nil {
			return fmt.Errorf("sending data: %w", err)
		}
		select {
		case ok := <-sent:
			if !ok {
				return fmt.Errorf("data write failed")
			}
		case <-time.After(sendDataTimeout):
			return fmt.Errorf("data write did not complete within %s", sendDataTimeout)
		}

		select {
		case rsp := <-reply:
			cmd.Printf("< %s (%s)\n", hex.EncodeToString(rsp.Payload), bytesize.ByteSize(len(rsp.Payload)))
		case <-time.After(sendDataTimeout):
			return fmt.Errorf("no reply within %s", sendDataTimeout)
		}

		// Leave the field cleanly rather than abandoning an activated target.
		if ok, err := core.SetState(nci.StateIdle); err == nil && ok {
			_ = waitForState(core, nci.StateIdle, bootstrapTimeout)
		}
		return nil
	},
}

func init() {
	sendDataCmd.Flags().Uint8Var(&sendDataCID, "cid", codec.StaticRFConnID, "Logical connection ID to send on")
	sendDataCmd.Flags().DurationVar(&sendDataTimeout, "timeout", 30*time.Second, "Timeout for activation, write completion, and reply")
}
