package bluebus

import (
	"bytes"
	"io"
	"sort"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
)

// Image is one contiguous block of program data to flash. Six data
// bytes cover four address units (two instruction words).
type Image struct {
	Addr uint32
	Data []byte
}

// FlasherOptions holds host-side programming options.
type FlasherOptions struct {
	// ChunkSize is the number of data bytes per write packet. It must
	// be a positive multiple of 6 no larger than MaxChunkSize; 0
	// selects the default.
	ChunkSize int

	// Memory, when set, is the target's memory map. Chunks that start
	// inside the protected region are flagged in the log; the device
	// skips them silently.
	Memory *MemoryMap
}

// MaxChunkSize is the largest data chunk that fits one frame next to
// the 3-byte target address.
const MaxChunkSize = (MaxPayloadSize - 3) / 6 * 6

const defaultChunkSize = 144

// Flasher drives a device speaking the bootloader frame format from
// the host end of the link. The transport is any io.ReadWriter,
// typically an open serial port.
type Flasher struct {
	rw      io.ReadWriter
	options FlasherOptions
	images  []Image
}

// NewFlasher creates a host-side flasher over the given transport.
func NewFlasher(rw io.ReadWriter, options FlasherOptions) (*Flasher, error) {
	if options.ChunkSize == 0 {
		options.ChunkSize = defaultChunkSize
	}
	if options.ChunkSize < 6 || options.ChunkSize%6 != 0 || options.ChunkSize > MaxChunkSize {
		return nil, errors.Errorf("chunk size must be a multiple of 6 in [6, %v], got %v", MaxChunkSize, options.ChunkSize)
	}
	return &Flasher{rw: rw, options: options}, nil
}

// LoadHex parses an Intel HEX image and queues its data segments for
// programming.
func (f *Flasher) LoadHex(r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return errors.Wrap(err, "parse hex")
	}
	for _, segment := range mem.GetDataSegments() {
		f.images = append(f.images, Image{Addr: segment.Address, Data: segment.Data})
		pkgLog.Debugf("loaded segment at %X length %v", segment.Address, len(segment.Data))
	}
	return nil
}

// AddImage queues a raw image for programming.
func (f *Flasher) AddImage(img Image) {
	f.images = append(f.images, img)
}

// Program writes every queued image, lowest address first. The first
// packet must target address 0: the device answers it by erasing the
// whole application space before programming begins.
func (f *Flasher) Program() error {
	if len(f.images) == 0 {
		return errors.New("no images loaded")
	}
	sort.Slice(f.images, func(i, j int) bool { return f.images[i].Addr < f.images[j].Addr })
	if f.images[0].Addr != 0 {
		return errors.Errorf("first image must start at address 0 to begin a session, got %#x", f.images[0].Addr)
	}
	for _, img := range f.images {
		if err := f.programImage(img); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flasher) programImage(img Image) error {
	address := img.Addr
	for offset := 0; offset < len(img.Data); offset += f.options.ChunkSize {
		chunk := img.Data[offset:]
		if len(chunk) > f.options.ChunkSize {
			chunk = chunk[:f.options.ChunkSize]
		}
		if m := f.options.Memory; m != nil && m.protected(address) && address != 0 {
			pkgLog.Warnf("chunk at %#x targets protected memory; the device will skip it", address)
		}
		payload := append([]byte{byte(address >> 16), byte(address >> 8), byte(address)}, chunk...)
		if _, err := f.transfer(CmdWriteDataRequest, payload, CmdWriteDataResponseOK, CmdWriteDataResponseErr); err != nil {
			return errors.Wrapf(err, "write at %#x", address)
		}
		pkgLog.Debugf("wrote %v bytes at %#x", len(chunk), address)
		// Four address units per six data bytes.
		address += uint32(len(chunk)+5) / 6 * 4
	}
	return nil
}

// WriteSerialNumber assigns the one-time device serial number. The
// device refuses the write once a non-zero number is stored.
func (f *Flasher) WriteSerialNumber(sn uint16) error {
	_, err := f.transfer(CmdWriteSNRequest, []byte{byte(sn >> 8), byte(sn)}, CmdWriteSNResponseOK, CmdWriteSNResponseErr)
	return err
}

// Platform asks the device for its platform identifier.
func (f *Flasher) Platform() (string, error) {
	pkt, err := f.request(CmdPlatformRequest, nil, CmdPlatformResponse)
	if err != nil {
		return "", err
	}
	return cstring(pkt.Data), nil
}

// Version asks the device for its bootloader version.
func (f *Flasher) Version() (string, error) {
	pkt, err := f.request(CmdVersionRequest, nil, CmdVersionResponse)
	if err != nil {
		return "", err
	}
	return cstring(pkt.Data), nil
}

// StartApplication asks the device to leave the bootloader and jump
// into the application image.
func (f *Flasher) StartApplication() error {
	_, err := f.request(CmdStartAppRequest, nil, CmdStartAppResponse)
	return err
}

// EnterPassthrough asks the device to rewire the companion module's
// serial lines past the MCU. The device link is gone afterwards until
// a physical reset.
func (f *Flasher) EnterPassthrough() error {
	_, err := f.request(CmdPassthroughRequest, nil, CmdPassthroughResponse)
	return err
}

// send frames and transmits one command on the host side.
func (f *Flasher) send(command byte, data []byte) error {
	frame, err := buildFrame(command, data)
	if err != nil {
		return err
	}
	_, err = f.rw.Write(frame)
	return err
}

// readPacket blocks until one whole frame arrives, then validates it.
func (f *Flasher) readPacket() (Packet, error) {
	header := make([]byte, 2)
	if _, err := io.ReadFull(f.rw, header); err != nil {
		return Packet{}, errors.Wrap(err, "read frame header")
	}
	total := int(header[1])
	if total < packetOverhead {
		return Packet{}, errors.Errorf("invalid frame length %v", total)
	}
	rest := make([]byte, total-2)
	if _, err := io.ReadFull(f.rw, rest); err != nil {
		return Packet{}, errors.Wrap(err, "read frame body")
	}
	pkt := Packet{Command: header[0], Data: rest[:len(rest)-1]}
	pkt.Status = validatePacket(&pkt, rest[len(rest)-1])
	if pkt.Status != PacketOK {
		return pkt, errors.Errorf("checksum mismatch on response %#x", pkt.Command)
	}
	return pkt, nil
}

// request sends a command and waits for the single expected response.
func (f *Flasher) request(command byte, data []byte, response byte) (Packet, error) {
	if err := f.send(command, data); err != nil {
		return Packet{}, err
	}
	pkt, err := f.readPacket()
	if err != nil {
		return pkt, err
	}
	if pkt.Command != response {
		return pkt, errors.Errorf("unexpected response %#x to command %#x", pkt.Command, command)
	}
	return pkt, nil
}

// transfer sends a command that the device answers with either an OK
// or an ERR response.
func (f *Flasher) transfer(command byte, data []byte, okResp, errResp byte) (Packet, error) {
	if err := f.send(command, data); err != nil {
		return Packet{}, err
	}
	pkt, err := f.readPacket()
	if err != nil {
		return pkt, err
	}
	switch pkt.Command {
	case okResp:
		return pkt, nil
	case errResp:
		return pkt, errors.Errorf("device rejected command %#x", command)
	default:
		return pkt, errors.Errorf("unexpected response %#x to command %#x", pkt.Command, command)
	}
}

// cstring decodes a NUL-terminated payload string.
func cstring(data []byte) string {
	if i := bytes.IndexByte(data, 0x00); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
