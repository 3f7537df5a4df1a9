package bluebus

import "github.com/pkg/errors"

// minWriteAddress guards the reset vector. No host packet ever writes
// below it; the vector is only touched by EraseAll itself.
const minWriteAddress = 0x04

// gotoOpcode is the instruction planted at address 0 so a blank part
// still vectors into the bootloader.
const gotoOpcode = 0x040000

// MemoryMap partitions the linear flash address space into the
// reserved low words, the bootloader region and the application
// region. All fields are in address units and must be aligned to the
// hardware granularities.
type MemoryMap struct {
	BootloaderStart  uint32
	ApplicationStart uint32
	ApplicationEnd   uint32
	// PageSize is the erase granularity in address units.
	PageSize uint32
}

// DefaultMemoryMap matches the production part's layout.
var DefaultMemoryMap = MemoryMap{
	BootloaderStart:  0x1800,
	ApplicationStart: 0x2800,
	ApplicationEnd:   0x2ABFE,
	PageSize:         0x800,
}

// protected reports whether a write at address would touch the
// bootloader image or the reserved low words.
func (m MemoryMap) protected(address uint32) bool {
	if address >= m.BootloaderStart && address < m.ApplicationStart {
		return true
	}
	return address < minWriteAddress
}

// SessionState marks whether a programming session is under way. A
// session begins on the first write packet addressed to 0; there is
// no explicit begin command in the protocol.
type SessionState uint8

const (
	SessionNotStarted SessionState = iota
	SessionInProgress
)

// Programmer erases and writes program memory while enforcing the
// protected-region invariants.
type Programmer struct {
	nvm     NVM
	mem     MemoryMap
	session SessionState
}

// NewProgrammer creates a programmer over the given NVM controller
// and memory map.
func NewProgrammer(nvm NVM, mem MemoryMap) *Programmer {
	return &Programmer{nvm: nvm, mem: mem}
}

// Session returns the current programming session state.
func (p *Programmer) Session() SessionState {
	return p.session
}

// EraseAll clears the application address space page by page. Page 0
// is erased first and its reset vector immediately rewritten, before
// anything else is touched: losing power between those two steps must
// still leave a bootable part. Pages inside the bootloader region are
// skipped.
func (p *Programmer) EraseAll() error {
	if err := p.nvm.ErasePage(0); err != nil {
		return errors.Wrap(err, "erase page 0")
	}
	if err := p.nvm.WriteDoubleWords(0, gotoOpcode+p.mem.BootloaderStart, 0); err != nil {
		return errors.Wrap(err, "rewrite reset vector")
	}
	for address := p.mem.PageSize; address <= p.mem.ApplicationEnd; address += p.mem.PageSize {
		if address < p.mem.BootloaderStart || address >= p.mem.ApplicationStart {
			if err := p.nvm.ErasePage(address); err != nil {
				return errors.Wrapf(err, "erase page at %#x", address)
			}
		}
	}
	pkgLog.Debugf("application space erased")
	return nil
}

// HandleWrite programs the payload of one write packet and reports
// WRITE_DATA OK or ERR to the host. The first three payload bytes
// carry the 24-bit big-endian target address; address 0 starts a
// session by erasing the application space first. The remaining
// payload is written six bytes at a time as two double-words.
//
// A write that would land in the protected region is skipped, not
// surfaced: the address advances by 2 and the payload cursor by 3, as
// if two bytes of input were consumed. Host tools depend on that
// exact accounting, so it must not be normalized to the 4/6 step of a
// real write.
func (p *Programmer) HandleWrite(u *UART, pkt Packet) {
	if len(pkt.Data) < 3 {
		pkgLog.Warnf("write packet too short: %v bytes", len(pkt.Data))
		respond(u, CmdWriteDataResponseErr, nil)
		return
	}
	address := uint32(pkt.Data[0])<<16 | uint32(pkt.Data[1])<<8 | uint32(pkt.Data[2])
	var err error
	if address == 0 {
		err = p.EraseAll()
		p.session = SessionInProgress
	}
	index := 3
	for index < len(pkt.Data) && err == nil {
		if p.mem.protected(address) {
			address += 0x02
			index += 3
			continue
		}
		low := payloadWord(pkt.Data, index)
		high := payloadWord(pkt.Data, index+3)
		err = p.nvm.WriteDoubleWords(address, low, high)
		index += 6
		address += 0x04
	}
	if err != nil {
		pkgLog.Infof("flash write aborted near %#x: %v", address, err)
		respond(u, CmdWriteDataResponseErr, nil)
		return
	}
	respond(u, CmdWriteDataResponseOK, nil)
}

// payloadWord packs three payload bytes big-endian below a phantom
// high byte, zero-filling past the end of a short final chunk.
func payloadWord(data []byte, i int) uint32 {
	var w uint32
	for n := 0; n < 3; n++ {
		w <<= 8
		if i+n < len(data) {
			w |= uint32(data[i+n])
		}
	}
	return w
}
