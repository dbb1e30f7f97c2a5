package protocol

// Wire bytes with structural meaning. MsgStart and MsgEnd delimit a
// message and are never echoed; Ready is sent once per connection.
const (
	Ready    byte = '*'
	MsgStart byte = '^'
	MsgEnd   byte = '$'
)

// State is the per-connection scanning state. It is the only memory the
// engine carries between reads.
type State uint8

const (
	// StateWaitForMsg discards bytes until MsgStart opens a message.
	StateWaitForMsg State = iota
	// StateInMsg echoes transformed bytes until MsgEnd closes the message.
	StateInMsg
)

func (s State) String() string {
	switch s {
	case StateWaitForMsg:
		return "wait_for_msg"
	case StateInMsg:
		return "in_msg"
	default:
		return "unknown"
	}
}

// Transform is the echo transform: wrap-increment of the byte value.
// Pure function of the input byte; 255 wraps to 0.
func Transform(b byte) byte {
	return b + 1
}
