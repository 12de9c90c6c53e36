package pkg

import "errors"

// Engine and transport errors.
var (
	// ErrOverflow indicates an inbound message exceeded the buffer capacity.
	ErrOverflow = errors.New("message buffer overflow")

	// ErrNAK indicates a bulk-in poll arrived before a response was ready.
	ErrNAK = errors.New("NAK: no response queued")

	// ErrInvalidChannel indicates a channel id outside 1..N.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotConfigured indicates a component was used before it was wired.
	ErrNotConfigured = errors.New("not configured")

	// ErrProtocol indicates a malformed USBTMC message.
	ErrProtocol = errors.New("protocol error")

	// ErrHeaderTooShort indicates a bulk packet shorter than its header.
	ErrHeaderTooShort = errors.New("bulk header too short")

	// ErrTagMismatch indicates bTagInverse is not the complement of bTag.
	ErrTagMismatch = errors.New("bTag mismatch")

	// ErrNotSupported indicates an unsupported request or message.
	ErrNotSupported = errors.New("not supported")

	// ErrStall indicates the device stalled an endpoint.
	ErrStall = errors.New("endpoint stalled")

	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")
)
