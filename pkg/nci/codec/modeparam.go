package codec

// ModeParamPollA is Table 54: Specific Parameters for NFC-A Poll Mode.
//
//	offset  size  field
//	0       2     SENS_RES
//	2       1     NFCID1 length (0, 4, 7, or 10)
//	3       n     NFCID1
//	3+n     1     SEL_RES length (0 or 1)
//	4+n     m     SEL_RES
type ModeParamPollA struct {
	SensRes   [2]byte
	NFCID1    []byte
	SelRes    uint8
	HasSelRes bool
}

// ModeParam is the decoded RF-technology-specific mode parameter for an
// activated target. Only Poll-A is decoded today; other modes report
// ok=false from ParseModeParam.
type ModeParam struct {
	PollA ModeParamPollA
}

// ParseModeParam decodes the mode-parameter bytes for the given activation
// mode. It returns ok=false (not an error) for modes the codec does not
// decode; an undecoded mode param must not fail the whole activation.
func ParseModeParam(mode Mode, bytes []byte) (*ModeParam, bool) {
	switch mode {
	case ModeActivePollA, ModePassivePollA:
		if len(bytes) < 4 {
			return nil, false
		}
		nfcid1Len := int(bytes[2])
		if len(bytes) < nfcid1Len+4 {
			return nil, false
		}
		selResLenIdx := nfcid1Len + 3
		if len(bytes) < selResLenIdx+1 {
			return nil, false
		}
		selResLen := int(bytes[selResLenIdx])
		if len(bytes) < nfcid1Len+4+selResLen {
			return nil, false
		}

		p := ModeParamPollA{}
		p.SensRes[0], p.SensRes[1] = bytes[0], bytes[1]
		if nfcid1Len > 0 {
			p.NFCID1 = append([]byte(nil), bytes[3:3+nfcid1Len]...)
		}
		if selResLen > 0 {
			p.HasSelRes = true
			p.SelRes = bytes[nfcid1Len+4]
		}
		return &ModeParam{PollA: p}, true
	default:
		return nil, false
	}
}
