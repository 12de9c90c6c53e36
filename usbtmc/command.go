package usbtmc

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ardnew/relaytmc/pkg"
)

// Command format strings for the known board variants. The single %d
// verb is replaced by the 1-based channel number.
const (
	// FormatRelayEnable is used by the 8-channel relay board ("RELAY3:EN 1").
	FormatRelayEnable = "relay%d:en"

	// FormatGPIORelay is used by the 2-channel QT Py board ("GPIO2:RELAY 0").
	FormatGPIORelay = "gpio%d:relay"
)

// Fixed vocabulary outside the per-channel families.
const (
	prefixIdentify = "*idn?"
	prefixReset    = "*rst"
	prefixDelay    = "delay "
)

// CommandKind identifies a recognized command family.
type CommandKind uint8

// Command families.
const (
	CommandUnknown CommandKind = iota
	CommandIdentify
	CommandReset
	CommandSetChannel
	CommandQueryChannel
	CommandDelay
)

// String returns the command family name.
func (k CommandKind) String() string {
	switch k {
	case CommandIdentify:
		return "identify"
	case CommandReset:
		return "reset"
	case CommandSetChannel:
		return "set-channel"
	case CommandQueryChannel:
		return "query-channel"
	case CommandDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Command is one entry of the recognition table.
type Command struct {
	Prefix  string // lower-case literal prefix
	Kind    CommandKind
	Channel int // 1-based; zero for device-wide commands
}

// Table is the ordered command recognition table. The first entry whose
// prefix matches a message wins.
type Table struct {
	commands []Command
}

// NewTable generates the table for a device with the given number of
// channels. format must contain exactly one %d verb; the empty string
// selects FormatRelayEnable.
func NewTable(channels int, format string) (*Table, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channel count %d: %w", channels, pkg.ErrInvalidParameter)
	}
	if format == "" {
		format = FormatRelayEnable
	}
	if strings.Count(format, "%") != 1 || strings.Count(format, "%d") != 1 {
		return nil, fmt.Errorf("command format %q needs exactly one %%d: %w",
			format, pkg.ErrInvalidParameter)
	}
	if strings.ContainsAny(format, " ?") {
		return nil, fmt.Errorf("command format %q must not contain space or '?': %w",
			format, pkg.ErrInvalidParameter)
	}

	t := &Table{commands: make([]Command, 0, 2*channels+3)}
	t.commands = append(t.commands,
		Command{Prefix: prefixIdentify, Kind: CommandIdentify},
		Command{Prefix: prefixReset, Kind: CommandReset},
	)
	for i := 1; i <= channels; i++ {
		base := strings.ToLower(fmt.Sprintf(format, i))
		t.commands = append(t.commands,
			Command{Prefix: base + " ", Kind: CommandSetChannel, Channel: i},
			Command{Prefix: base + "?", Kind: CommandQueryChannel, Channel: i},
		)
	}
	t.commands = append(t.commands, Command{Prefix: prefixDelay, Kind: CommandDelay})
	return t, nil
}

// Commands returns the table entries in match order.
func (t *Table) Commands() []Command {
	out := make([]Command, len(t.commands))
	copy(out, t.commands)
	return out
}

// Channels returns the number of channels covered by the table.
func (t *Table) Channels() int {
	return (len(t.commands) - 3) / 2
}

// Match returns the first command whose prefix matches msg, ignoring case.
func (t *Table) Match(msg []byte) (Command, bool) {
	for _, c := range t.commands {
		if hasPrefixFold(msg, c.Prefix) {
			return c, true
		}
	}
	return Command{}, false
}

// hasPrefixFold reports whether msg begins with prefix under ASCII case
// folding. A message shorter than the prefix never matches.
func hasPrefixFold(msg []byte, prefix string) bool {
	if len(msg) < len(prefix) {
		return false
	}
	return bytes.EqualFold(msg[:len(prefix)], []byte(prefix))
}

// Argument returns the token following the last space in msg, or nil if
// msg contains no space.
func Argument(msg []byte) []byte {
	i := bytes.LastIndexByte(msg, ' ')
	if i < 0 {
		return nil
	}
	return msg[i+1:]
}

// ParseInt converts the leading decimal integer of b, after optional
// whitespace and sign. Parsing stops at the first non-digit; input with
// no digits yields 0. Values beyond the int32 range saturate.
func ParseInt(b []byte) int {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}
	var n int64
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		n = n*10 + int64(b[i]-'0')
		if n > math.MaxInt32+1 {
			n = math.MaxInt32 + 1
		}
	}
	if neg {
		n = -n
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return int(n)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
