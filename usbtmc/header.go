package usbtmc

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/relaytmc/pkg"
)

// HeaderSize is the length of every USBTMC bulk message header.
const HeaderSize = 12

// bmTransferAttributes bits.
const (
	AttrEOM             uint8 = 0x01 // DEV_DEP_MSG_OUT/IN: last byte is end of message
	AttrTermCharEnabled uint8 = 0x02 // REQUEST_DEV_DEP_MSG_IN: honour TermChar
)

// Header is a USBTMC Bulk-OUT or Bulk-IN message header.
type Header struct {
	MsgID        uint8
	Tag          uint8 // bTag; bTagInverse is derived
	TransferSize uint32
	Attributes   uint8
	TermChar     uint8 // REQUEST_DEV_DEP_MSG_IN only
}

// ParseHeader decodes a bulk header from data.
func ParseHeader(data []byte, out *Header) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%d bytes: %w", len(data), pkg.ErrHeaderTooShort)
	}
	if data[1] != ^data[2] {
		return fmt.Errorf("bTag 0x%02X, inverse 0x%02X: %w", data[1], data[2], pkg.ErrTagMismatch)
	}
	out.MsgID = data[0]
	out.Tag = data[1]
	out.TransferSize = binary.LittleEndian.Uint32(data[4:8])
	out.Attributes = data[8]
	out.TermChar = 0
	if out.MsgID == MsgRequestDevDepMsgIn {
		out.TermChar = data[9]
	}
	return nil
}

// MarshalTo writes the header to buf. Returns the number of bytes written
// (12), or 0 if buf is too small.
func (h *Header) MarshalTo(buf []byte) int {
	if len(buf) < HeaderSize {
		return 0
	}
	clear(buf[:HeaderSize])
	buf[0] = h.MsgID
	buf[1] = h.Tag
	buf[2] = ^h.Tag
	binary.LittleEndian.PutUint32(buf[4:8], h.TransferSize)
	buf[8] = h.Attributes
	if h.MsgID == MsgRequestDevDepMsgIn && h.Attributes&AttrTermCharEnabled != 0 {
		buf[9] = h.TermChar
	}
	return HeaderSize
}

// EOM reports whether the end-of-message attribute is set.
func (h *Header) EOM() bool { return h.Attributes&AttrEOM != 0 }

// PaddedLen rounds n up to the 4-byte alignment required of bulk messages.
func PaddedLen(n int) int { return (n + 3) &^ 3 }

// AppendMessage appends header h, data and alignment padding to dst.
// h.TransferSize is written as given.
func AppendMessage(dst []byte, h Header, data []byte) []byte {
	var hdr [HeaderSize]byte
	h.MarshalTo(hdr[:])
	dst = append(dst, hdr[:]...)
	dst = append(dst, data...)
	for pad := PaddedLen(len(data)) - len(data); pad > 0; pad-- {
		dst = append(dst, 0)
	}
	return dst
}

// NextTag returns the bTag following tag. bTag zero is reserved.
func NextTag(tag uint8) uint8 {
	tag++
	if tag == 0 {
		tag = 1
	}
	return tag
}
