package joybus

// Command is the first byte a PIF channel transmits to a controller.
type Command uint8

const (
	CommandStatus      Command = 0x00
	CommandReadButtons Command = 0x01
	CommandReadPak     Command = 0x02
	CommandWritePak    Command = 0x03
	CommandReset       Command = 0xff
)

func (c Command) String() string {
	switch c {
	case CommandStatus:
		return "status"
	case CommandReadButtons:
		return "read buttons"
	case CommandReadPak:
		return "read pak"
	case CommandWritePak:
		return "write pak"
	case CommandReset:
		return "reset"
	default:
		return "unknown"
	}
}

const (
	// StatusErrorMask covers the "no response" and "overrun" bits of a
	// channel's receive length byte.
	StatusErrorMask = 0xc0

	// pakDataLength is the offset of the CRC byte in a pak read response.
	pakDataLength = 32

	noPak = 0xff
)

// Controller type for a standard controller with nothing in the pak slot,
// as returned by a status or reset command.
var standardController = [3]byte{0x00, 0x05, 0x00}

// Channel is one PIF channel during a single bus transaction.
type Channel struct {
	// Tx is set when the channel transmitted a command this cycle.
	Tx      bool
	Command Command
	// Status is the receive length byte. Its top bits report errors.
	Status byte
	Rx     []byte
}
