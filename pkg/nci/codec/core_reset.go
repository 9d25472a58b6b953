package codec

import "fmt"

// ResetType is the CORE_RESET_CMD payload: whether the NFCC should keep or
// discard its persisted NCI configuration (Table 8).
type ResetType uint8

const (
	ResetKeepConfig  ResetType = 0x00
	ResetResetConfig ResetType = 0x01
)

// EncodeCoreResetCmd returns the 1-byte CORE_RESET_CMD payload.
func EncodeCoreResetCmd(t ResetType) []byte {
	return []byte{byte(t)}
}

// CoreResetRsp is the parsed CORE_RESET_RSP. Version 1 carries status and a
// config-reset indicator in a 3-byte response; version 2 carries only
// status, deferring feature negotiation to the follow-up CORE_RESET_NTF.
type CoreResetRsp struct {
	Version      int // 1 or 2
	Status       Status
	ConfigStatus uint8 // v1 only: NCI config kept/reset indicator
}

// ParseCoreResetRsp decodes CORE_RESET_RSP. Length 3 is NCI 1.x (status,
// config-reset byte, NCI version byte); length 1 is NCI 2.x (status only).
func ParseCoreResetRsp(payload []byte) (CoreResetRsp, error) {
	switch len(payload) {
	case 1:
		return CoreResetRsp{Version: 2, Status: Status(payload[0])}, nil
	case 3:
		return CoreResetRsp{
			Version:      1,
			Status:       Status(payload[0]),
			ConfigStatus: payload[1],
		}, nil
	default:
		return CoreResetRsp{}, fmt.Errorf("codec: CORE_RESET_RSP bad length %d", len(payload))
	}
}
