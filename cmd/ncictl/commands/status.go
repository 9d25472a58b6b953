package commands

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nfcgo/ncicore/pkg/nci/codec"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Bootstrap the controller and report its state and capabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closer, err := openCore()
		if err != nil {
			return err
		}
		defer closer()

		if err := bootstrap(core); err != nil {
			return err
		}

		caps := core.Capabilities()
		cmd.Printf("Current state: %s\n", core.CurrentState())
		cmd.Printf("Next state:    %s\n\n", core.NextState())

		table := newKVTable(cmd)
		table.Append([]string{"NCI version", fmt.Sprintf("%d", caps.Version)})
		table.Append([]string{"RF interfaces", formatRFInterfaces(caps.SupportedRFInterfaces)})
		table.Append([]string{"Max logical connections", fmt.Sprintf("%d", caps.MaxLogicalConnections)})
		table.Append([]string{"Max control packet size", fmt.Sprintf("%d", caps.MaxControlPacketSize)})
		table.Append([]string{"Max routing table size", fmt.Sprintf("%d", caps.MaxRoutingTableSize)})
		table.Append([]string{"Routing", formatRouting(caps.Features)})
		table.Append([]string{"Discovery freq config", fmt.Sprintf("%t", caps.Features.DiscoveryFrequencyConfig)})
		if caps.Version == 1 {
			table.Append([]string{"Manufacturer", fmt.Sprintf("0x%02x %x", caps.ManufacturerID, caps.ManufacturerInfo)})
		}
		table.Render()
		return nil
	},
}

// newKVTable builds the borderless two-column table style used for all
// human-facing output.
func newKVTable(cmd *cobra.Command) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(":")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func formatRFInterfaces(intfs []codec.RFInterface) string {
	if len(intfs) == 0 {
		return "none reported"
	}
	names := make([]string, len(intfs))
	for i, intf := range intfs {
		names[i] = rfInterfaceName(intf)
	}
	return strings.Join(names, ", ")
}

func rfInterfaceName(intf codec.RFInterface) string {
	switch intf {
	case codec.RFInterfaceNFCEEDirect:
		return "NFCEE_DIRECT"
	case codec.RFInterfaceFrame:
		return "FRAME"
	case codec.RFInterfaceISODep:
		return "ISO-DEP"
	case codec.RFInterfaceNFCDep:
		return "NFC-DEP"
	default:
		return fmt.Sprintf("0x%02x", uint8(intf))
	}
}

func formatRouting(f codec.Features) string {
	var kinds []string
	if f.RoutingTechnologyBased {
		kinds = append(kinds, "technology")
	}
	if f.RoutingProtocolBased {
		kinds = append(kinds, "protocol")
	}
	if f.RoutingAIDBased {
		kinds = append(kinds, "AID")
	}
	if len(kinds) == 0 {
		return "unsupported"
	}
	return strings.Join(kinds, ", ")
}
