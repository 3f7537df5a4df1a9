package bluebus

import (
	"fmt"

	"github.com/pkg/errors"
)

// SimPort is an in-memory UARTPort for tests and host-side mock
// devices. Bytes fed with Feed appear on the receive register as if
// they arrived on the wire; bytes the device transmits accumulate in
// Tx.
type SimPort struct {
	rx   []byte
	errs []bool

	// Tx holds everything the device has transmitted.
	Tx []byte

	// Overrun mirrors the hardware overrun flag.
	Overrun bool

	Divisor   uint16
	Enabled   bool
	TxRxOn    bool
	PinsBound bool
}

// Feed queues bytes on the receive side.
func (p *SimPort) Feed(data ...byte) {
	for _, b := range data {
		p.rx = append(p.rx, b)
		p.errs = append(p.errs, false)
	}
}

// FeedErrored queues one byte flagged with a hardware framing error.
func (p *SimPort) FeedErrored(b byte) {
	p.rx = append(p.rx, b)
	p.errs = append(p.errs, true)
}

func (p *SimPort) BindPins()                { p.PinsBound = true }
func (p *SimPort) UnbindPins()              { p.PinsBound = false }
func (p *SimPort) SetBaudDivisor(d uint16)  { p.Divisor = d }
func (p *SimPort) SetModuleEnabled(on bool) { p.Enabled = on }
func (p *SimPort) SetTxRxEnabled(on bool)   { p.TxRxOn = on }

func (p *SimPort) DataAvailable() bool {
	return p.Enabled && p.TxRxOn && len(p.rx) > 0
}

func (p *SimPort) ReceiveError() bool {
	return len(p.errs) > 0 && p.errs[0]
}

func (p *SimPort) OverrunError() bool { return p.Overrun }
func (p *SimPort) ClearOverrun()      { p.Overrun = false }

func (p *SimPort) ReadData() byte {
	if len(p.rx) == 0 {
		return 0
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	p.errs = p.errs[1:]
	return b
}

func (p *SimPort) WriteData(b byte)   { p.Tx = append(p.Tx, b) }
func (p *SimPort) TransmitBusy() bool { return false }

// erasedWord is what an erased or never-written instruction word
// reads back as: all ones below the phantom byte.
const erasedWord = 0x00FFFFFF

// MemNVM is an in-memory NVM with page-granular erase. It records
// every hardware operation in order so tests can assert on the exact
// erase/write sequence.
type MemNVM struct {
	pageSize uint32
	words    map[uint32]uint32

	// Ops lists each operation as "erase <addr>" or "write <addr>".
	Ops []string

	// FailWrites makes WriteDoubleWords fail once the target address
	// equals FailWriteAt.
	FailWrites  bool
	FailWriteAt uint32
}

// NewMemNVM creates an empty flash array with the given erase page
// size in address units.
func NewMemNVM(pageSize uint32) *MemNVM {
	return &MemNVM{pageSize: pageSize, words: make(map[uint32]uint32)}
}

func (n *MemNVM) ErasePage(address uint32) error {
	n.Ops = append(n.Ops, fmt.Sprintf("erase %#x", address))
	for a := address; a < address+n.pageSize; a += 2 {
		delete(n.words, a)
	}
	return nil
}

func (n *MemNVM) WriteDoubleWords(address uint32, low, high uint32) error {
	if n.FailWrites && address == n.FailWriteAt {
		return errors.New("nvm: write verify failed")
	}
	n.Ops = append(n.Ops, fmt.Sprintf("write %#x", address))
	n.words[address] = low
	n.words[address+2] = high
	return nil
}

// Word returns the instruction word at address.
func (n *MemNVM) Word(address uint32) uint32 {
	if w, ok := n.words[address]; ok {
		return w
	}
	return erasedWord
}

// MemEEPROM is a sparse in-memory EEPROM; unwritten cells read 0x00.
type MemEEPROM struct {
	cells map[uint16]byte
}

func NewMemEEPROM() *MemEEPROM {
	return &MemEEPROM{cells: make(map[uint16]byte)}
}

func (e *MemEEPROM) ReadByte(address uint16) byte         { return e.cells[address] }
func (e *MemEEPROM) WriteByte(address uint16, value byte) { e.cells[address] = value }

// FakeClock is a manually controlled millisecond source. When Step is
// non-zero every reading advances the clock, which lets idle-timeout
// loops make progress in tests.
type FakeClock struct {
	Now  uint32
	Step uint32
}

func (c *FakeClock) Millis() uint32 {
	t := c.Now
	c.Now += c.Step
	return t
}

// Advance moves the clock forward.
func (c *FakeClock) Advance(ms uint32) { c.Now += ms }

// SimMux records the pass-through switch position.
type SimMux struct {
	Passthrough bool
}

func (m *SimMux) EnablePassthrough() { m.Passthrough = true }
