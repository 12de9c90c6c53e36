package usbtmc

// Outputs is the relay/output backend driven by the dispatcher.
// Channel ids are 1-based. Implementations apply their own polarity:
// enabled means the channel drives its active level.
type Outputs interface {
	// Len returns the number of channels.
	Len() int

	// Set enables or disables channel id.
	Set(id int, enabled bool) error

	// Get reports whether channel id currently drives its active level.
	Get(id int) (bool, error)

	// Reset drives every channel to its inactive level.
	Reset() error
}

// AuxOutput is implemented by backends that also carry an auxiliary
// analog output, which the reset command clears.
type AuxOutput interface {
	ClearAux() error
}

// Identity supplies the response to the identification query.
type Identity interface {
	Identification() []byte
}

// StaticIdentity is a fixed identification string.
type StaticIdentity string

// Identification returns the string as bytes.
func (s StaticIdentity) Identification() []byte { return []byte(s) }

// SerialIdentity appends a hardware serial number to a model prefix,
// e.g. "QT_Py_Dual_Relay_" + "0x8b0c...".
type SerialIdentity struct {
	Prefix string
	Serial string
}

// Identification returns Prefix followed by Serial.
func (s SerialIdentity) Identification() []byte {
	return []byte(s.Prefix + s.Serial)
}

// IdentityFunc adapts a function to the Identity interface.
type IdentityFunc func() []byte

// Identification calls f.
func (f IdentityFunc) Identification() []byte { return f() }
