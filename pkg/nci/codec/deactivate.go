package codec

import "fmt"

// DeactivateNtf is RF_DEACTIVATE_NTF: [type, reason].
type DeactivateNtf struct {
	Type   DeactivateType
	Reason Status
}

// ParseDeactivateNtf decodes RF_DEACTIVATE_NTF's fixed 2-byte payload.
func ParseDeactivateNtf(payload []byte) (DeactivateNtf, error) {
	if len(payload) != 2 {
		return DeactivateNtf{}, fmt.Errorf("codec: RF_DEACTIVATE_NTF bad length %d, want 2", len(payload))
	}
	return DeactivateNtf{
		Type:   DeactivateType(payload[0]),
		Reason: Status(payload[1]),
	}, nil
}

// DeactivateCmd is RF_DEACTIVATE_CMD: a single requested deactivation type.
type DeactivateCmd struct {
	Type DeactivateType
}

// EncodeDeactivateCmd returns the 1-byte RF_DEACTIVATE_CMD payload.
func EncodeDeactivateCmd(c DeactivateCmd) []byte {
	return []byte{byte(c.Type)}
}
