// Package codec implements the NCI wire format: packet headers, control
// response/notification parsers, and RF activation/mode parameter decoding.
package codec

// MessageType is the MT field of an NCI packet header (Table 3).
type MessageType uint8

const (
	MTData         MessageType = 0x00
	MTCommand      MessageType = 0x01
	MTResponse     MessageType = 0x02
	MTNotification MessageType = 0x03
)

// Group identifiers (Table 5 and vendor-reserved ranges).
const (
	GIDCore  uint8 = 0x00
	GIDRF    uint8 = 0x01
	GIDNFCEE uint8 = 0x02
)

// Opcode identifiers under GIDCore.
const (
	OIDCoreReset        uint8 = 0x00
	OIDCoreInit         uint8 = 0x01
	OIDCoreSetConfig    uint8 = 0x02
	OIDCoreGetConfig    uint8 = 0x03
	OIDCoreConnCreate   uint8 = 0x04
	OIDCoreConnClose    uint8 = 0x05
	OIDCoreConnCredits  uint8 = 0x06
	OIDCoreGenericError uint8 = 0x07
	OIDCoreInterfaceErr uint8 = 0x08
)

// Opcode identifiers under GIDRF.
const (
	OIDRFDiscoverMap          uint8 = 0x00
	OIDRFSetListenModeRouting uint8 = 0x01
	OIDRFDiscover             uint8 = 0x03
	OIDRFIntfActivated        uint8 = 0x05
	OIDRFDeactivate           uint8 = 0x06
)

// StaticRFConnID is the static RF connection between DH and remote endpoint
// (Table 4).
const StaticRFConnID uint8 = 0x00

// Status is an NCI status code (Table 94).
type Status uint8

const (
	StatusOK                              Status = 0x00
	StatusRejected                        Status = 0x01
	StatusRFFrameCorrupted                Status = 0x02
	StatusFailed                          Status = 0x03
	StatusNotInitialized                  Status = 0x04
	StatusSyntaxError                     Status = 0x05
	StatusSemanticError                   Status = 0x06
	StatusInvalidParam                    Status = 0x09
	StatusMessageSizeExceeded             Status = 0x0A
	StatusDiscoveryAlreadyStarted         Status = 0xA0
	StatusDiscoveryTargetActivationFailed Status = 0xA1
	StatusDiscoveryTearDown               Status = 0xA2
	StatusRFTransmissionError             Status = 0xB0
	StatusRFProtocolError                 Status = 0xB1
	StatusRFTimeoutError                  Status = 0xB2
	StatusNFCEEInterfaceActivationFailed  Status = 0xC0
	StatusNFCEETransmissionError          Status = 0xC1
	StatusNFCEEProtocolError              Status = 0xC2
	StatusNFCEETimeoutError               Status = 0xC3
)

func (s Status) OK() bool { return s == StatusOK }

// Mode is the RF technology and mode (Table 96).
type Mode uint8

const (
	ModePassivePollA       Mode = 0x00
	ModePassivePollB       Mode = 0x01
	ModePassivePollF       Mode = 0x02
	ModeActivePollA        Mode = 0x03
	ModeActivePollF        Mode = 0x05
	ModePassivePoll15693   Mode = 0x06
	ModePassiveListenA     Mode = 0x80
	ModePassiveListenB     Mode = 0x81
	ModePassiveListenF     Mode = 0x82
	ModeActiveListenA      Mode = 0x83
	ModeActiveListenF      Mode = 0x85
	ModePassiveListen15693 Mode = 0x86
)

// BitRate is a data-exchange bit rate (Table 97).
type BitRate uint8

const (
	BitRate106  BitRate = 0x00
	BitRate212  BitRate = 0x01
	BitRate424  BitRate = 0x02
	BitRate848  BitRate = 0x03
	BitRate1695 BitRate = 0x04
	BitRate3390 BitRate = 0x05
	BitRate6780 BitRate = 0x06
)

// Protocol is an RF protocol (Table 98).
type Protocol uint8

const (
	ProtocolUndetermined Protocol = 0x00
	ProtocolT1T          Protocol = 0x01
	ProtocolT2T          Protocol = 0x02
	ProtocolT3T          Protocol = 0x03
	ProtocolISODep       Protocol = 0x04
	ProtocolNFCDep       Protocol = 0x05
)

// RFInterface is an RF interface (Table 99).
type RFInterface uint8

const (
	RFInterfaceNFCEEDirect RFInterface = 0x00
	RFInterfaceFrame       RFInterface = 0x01
	RFInterfaceISODep      RFInterface = 0x02
	RFInterfaceNFCDep      RFInterface = 0x03
)

// DeactivateType is the type field of RF_DEACTIVATE_CMD/NTF.
type DeactivateType uint8

const (
	DeactivateIdle      DeactivateType = 0x00
	DeactivateSleep     DeactivateType = 0x01
	DeactivateSleepAF   DeactivateType = 0x02
	DeactivateDiscovery DeactivateType = 0x03
)

// fsciToFSC is Table 66: FSCI to FSC Conversion. Index by FSCI (low nibble of
// ATS byte T0), clamped at the last entry for out-of-table values.
var fsciToFSC = [...]int{16, 24, 32, 40, 48, 64, 96, 128, 256}

// FSCIToFSC converts an FSCI nibble (0-15) to FSC in bytes.
func FSCIToFSC(fsci uint8) int {
	if int(fsci) < len(fsciToFSC) {
		return fsciToFSC[fsci]
	}
	return fsciToFSC[len(fsciToFSC)-1]
}
