package usbtmc

import (
	"fmt"
	"strings"
	"time"
)

// Engine limits.
const (
	// DefaultBufferSize is the inbound message capacity in bytes. A few
	// full-speed packets is enough for any command in the vocabulary.
	DefaultBufferSize = 225

	// DefaultResponseDelay is the simulated latency of each response phase.
	DefaultResponseDelay = 125 * time.Millisecond

	// MaxResponseDelay is the upper clamp for the delay command.
	MaxResponseDelay = 10000 * time.Millisecond
)

// USBTMC bulk message identifiers (USBTMC 1.0 Table 2, USB488 Table 3).
const (
	MsgDevDepMsgOut        uint8 = 1
	MsgRequestDevDepMsgIn  uint8 = 2
	MsgDevDepMsgIn         uint8 = 2
	MsgVendorSpecificOut   uint8 = 126
	MsgRequestVendorSpecIn uint8 = 127
	MsgTrigger             uint8 = 128
)

// USBTMC class-specific control requests (USBTMC 1.0 Table 15, USB488 Table 9).
const (
	RequestInitiateAbortBulkOut    uint8 = 1
	RequestCheckAbortBulkOutStatus uint8 = 2
	RequestInitiateAbortBulkIn     uint8 = 3
	RequestCheckAbortBulkInStatus  uint8 = 4
	RequestInitiateClear           uint8 = 5
	RequestCheckClearStatus        uint8 = 6
	RequestGetCapabilities         uint8 = 7
	RequestIndicatorPulse          uint8 = 64
	RequestReadStatusByte          uint8 = 128
	RequestRENControl              uint8 = 160
	RequestGoToLocal               uint8 = 161
	RequestLocalLockout            uint8 = 162
)

// Status is a USBTMC_status value returned in control responses.
type Status uint8

// USBTMC_status values (USBTMC 1.0 Table 16).
const (
	StatusSuccess               Status = 0x01
	StatusPending               Status = 0x02
	StatusFailed                Status = 0x80
	StatusTransferNotInProgress Status = 0x81
	StatusSplitNotInProgress    Status = 0x82
	StatusSplitInProgress       Status = 0x83
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	case StatusTransferNotInProgress:
		return "transfer not in progress"
	case StatusSplitNotInProgress:
		return "split not in progress"
	case StatusSplitInProgress:
		return "split in progress"
	default:
		return fmt.Sprintf("unknown (0x%02X)", uint8(s))
	}
}

// StatusByte is the IEEE 488.2 status byte reported by READ_STATUS_BYTE.
type StatusByte uint8

// Status byte flags.
const (
	STBQuestionable StatusByte = 0x08
	STBMAV          StatusByte = 0x10 // Message available
	STBSER          StatusByte = 0x20
	STBSRQ          StatusByte = 0x40 // Service request
)

// Has reports whether every bit of flag is set.
func (s StatusByte) Has(flag StatusByte) bool {
	return s&flag == flag
}

// String lists the set flags, e.g. "MAV|SRQ".
func (s StatusByte) String() string {
	if s == 0 {
		return "0"
	}
	var names []string
	for _, f := range []struct {
		bit  StatusByte
		name string
	}{
		{STBQuestionable, "QUES"},
		{STBMAV, "MAV"},
		{STBSER, "SER"},
		{STBSRQ, "SRQ"},
	} {
		if s&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if rest := s &^ (STBQuestionable | STBMAV | STBSER | STBSRQ); rest != 0 {
		names = append(names, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	return strings.Join(names, "|")
}
