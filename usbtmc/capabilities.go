package usbtmc

import "encoding/binary"

// CapabilitiesSize is the length of the USB488 GET_CAPABILITIES response.
const CapabilitiesSize = 0x18

// BCD release numbers reported in the capabilities descriptor.
const (
	BCDUSBTMC = 0x0100
	BCDUSB488 = 0x0100
)

// Capabilities is the USBTMC/USB488 GET_CAPABILITIES descriptor.
type Capabilities struct {
	// USBTMC interface capabilities.
	ListenOnly             bool
	TalkOnly               bool
	SupportsIndicatorPulse bool

	// USBTMC device capabilities.
	CanEndBulkInOnTermChar bool

	// USB488 interface capabilities.
	SupportsTrigger   bool
	SupportsRENGTLLLO bool
	Is488_2           bool

	// USB488 device capabilities.
	SCPI bool
	SR1  bool
	RL1  bool
	DT1  bool
}

// DefaultCapabilities describes the relay board: an IEEE 488.2 SCPI
// device with indicator pulse and trigger support and no remote/local
// or device-trigger subsets.
var DefaultCapabilities = Capabilities{
	SupportsIndicatorPulse: true,
	SupportsTrigger:        true,
	Is488_2:                true,
	SCPI:                   true,
}

// MarshalTo writes the GET_CAPABILITIES response with the given status
// to buf. Returns the number of bytes written, or 0 if buf is too small.
func (c *Capabilities) MarshalTo(buf []byte, status Status) int {
	if len(buf) < CapabilitiesSize {
		return 0
	}
	clear(buf[:CapabilitiesSize])

	buf[0] = byte(status)
	binary.LittleEndian.PutUint16(buf[2:4], BCDUSBTMC)
	buf[4] = bit(c.ListenOnly, 2) | bit(c.TalkOnly, 1) | bit(c.SupportsIndicatorPulse, 0)
	buf[5] = bit(c.CanEndBulkInOnTermChar, 0)

	binary.LittleEndian.PutUint16(buf[12:14], BCDUSB488)
	buf[14] = bit(c.Is488_2, 2) | bit(c.SupportsRENGTLLLO, 1) | bit(c.SupportsTrigger, 0)
	buf[15] = bit(c.SCPI, 3) | bit(c.SR1, 2) | bit(c.RL1, 1) | bit(c.DT1, 0)

	return CapabilitiesSize
}

// ParseCapabilities decodes a GET_CAPABILITIES response. Returns false if
// data is too short.
func ParseCapabilities(data []byte, out *Capabilities) (Status, bool) {
	if len(data) < CapabilitiesSize {
		return 0, false
	}
	*out = Capabilities{
		ListenOnly:             data[4]&(1<<2) != 0,
		TalkOnly:               data[4]&(1<<1) != 0,
		SupportsIndicatorPulse: data[4]&(1<<0) != 0,
		CanEndBulkInOnTermChar: data[5]&(1<<0) != 0,
		Is488_2:                data[14]&(1<<2) != 0,
		SupportsRENGTLLLO:      data[14]&(1<<1) != 0,
		SupportsTrigger:        data[14]&(1<<0) != 0,
		SCPI:                   data[15]&(1<<3) != 0,
		SR1:                    data[15]&(1<<2) != 0,
		RL1:                    data[15]&(1<<1) != 0,
		DT1:                    data[15]&(1<<0) != 0,
	}
	return Status(data[0]), true
}

func bit(set bool, n uint) byte {
	if set {
		return 1 << n
	}
	return 0
}
