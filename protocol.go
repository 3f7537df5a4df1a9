package bluebus

import "github.com/pkg/errors"

// packetOverhead is the number of control bytes per frame: command,
// total length and checksum. The length byte on the wire counts the
// whole frame, so payload length is always totalLength - 3.
const packetOverhead = 3

// MaxPayloadSize is the largest payload one frame can carry; the
// total length has to fit in a single byte.
const MaxPayloadSize = 0xFF - packetOverhead

// Protocol command identifiers.
const (
	CmdPlatformRequest      = 0x00
	CmdPlatformResponse     = 0x01
	CmdVersionRequest       = 0x02
	CmdVersionResponse      = 0x03
	CmdWriteDataRequest     = 0x04
	CmdWriteDataResponseOK  = 0x05
	CmdWriteDataResponseErr = 0x06
	CmdPassthroughRequest   = 0x07
	CmdPassthroughResponse  = 0x08
	CmdStartAppRequest      = 0x09
	CmdStartAppResponse     = 0x0A
	CmdWriteSNRequest       = 0x0B
	CmdWriteSNResponseOK    = 0x0C
	CmdWriteSNResponseErr   = 0x0D
)

// PacketStatus tags the result of a parse attempt.
type PacketStatus uint8

const (
	// PacketIncomplete means the queue does not yet hold one whole
	// frame.
	PacketIncomplete PacketStatus = iota
	// PacketOK means a complete frame arrived and its checksum folds
	// to zero.
	PacketOK
	// PacketBad means a complete frame arrived but failed validation.
	PacketBad
)

// Packet is one parsed frame. It is created fresh per parse attempt
// and must not be retained after the command handler consumes it.
type Packet struct {
	Command byte
	Data    []byte
	Status  PacketStatus
}

// ProcessPacket attempts to parse one frame out of the receive queue.
// It returns an incomplete packet until at least two bytes are
// buffered and the queue holds exactly the frame's declared total
// length: the codec waits for a whole frame rather than reassembling
// across calls.
func ProcessPacket(u *UART) Packet {
	pkt := Packet{Status: PacketIncomplete}
	if u.Buffered() < 2 {
		return pkt
	}
	if u.Buffered() != int(u.ByteAt(1)) {
		return pkt
	}
	pkt.Command = u.NextByte()
	dataSize := int(u.NextByte()) - packetOverhead
	if dataSize > 0 {
		pkt.Data = make([]byte, dataSize)
		for i := 0; i < dataSize; i++ {
			if u.Buffered() > 0 {
				pkt.Data[i] = u.NextByte()
			} else {
				// A miscounted frame left the queue short; zero-fill
				// the remainder so validation still runs.
				pkt.Data[i] = 0x00
			}
		}
	}
	checksum := u.NextByte()
	pkt.Status = validatePacket(&pkt, checksum)
	return pkt
}

// validatePacket XOR-folds the command byte, the declared total
// length and every payload byte against the trailing checksum; a zero
// fold is a valid frame. An even number of flips in the same bit
// column across two bytes cancels out, a known limit of the XOR
// scheme.
func validatePacket(pkt *Packet, checksum byte) PacketStatus {
	chk := pkt.Command
	chk ^= byte(len(pkt.Data) + packetOverhead)
	for _, b := range pkt.Data {
		chk ^= b
	}
	chk ^= checksum
	if chk == 0 {
		return PacketOK
	}
	return PacketBad
}

// buildFrame serializes one frame: command, total length, payload,
// checksum. A zero-length payload is substituted with a single null
// byte; the wire format has no empty frames.
func buildFrame(command byte, data []byte) ([]byte, error) {
	if len(data) == 0 {
		data = []byte{0x00}
	}
	if len(data) > MaxPayloadSize {
		return nil, errors.Errorf("payload too long: %v bytes", len(data))
	}
	length := byte(len(data) + packetOverhead)
	frame := make([]byte, 0, int(length))
	frame = append(frame, command, length)
	frame = append(frame, data...)
	chk := command ^ length
	for _, b := range data {
		chk ^= b
	}
	frame = append(frame, chk)
	return frame, nil
}

// SendPacket frames the command and payload and transmits them.
func SendPacket(u *UART, command byte, data []byte) error {
	frame, err := buildFrame(command, data)
	if err != nil {
		return err
	}
	u.Send(frame)
	return nil
}

// SendStringPacket transmits the string, including its NUL
// terminator, as the frame payload.
func SendStringPacket(u *UART, command byte, s string) error {
	return SendPacket(u, command, append([]byte(s), 0x00))
}

// respond sends a reply frame. An oversized response is logged and
// dropped; the device has nobody to report a transmit failure to.
func respond(u *UART, command byte, data []byte) {
	if err := SendPacket(u, command, data); err != nil {
		pkgLog.Warnf("response %#x dropped: %v", command, err)
	}
}
