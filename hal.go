package bluebus

// UARTPort models the memory-mapped register block of one hardware
// serial peripheral as typed operations on its named register fields.
// Injecting it keeps the transport and protocol logic testable on
// non-hardware targets.
type UARTPort interface {
	// BindPins routes the peripheral's RX/TX signals through the
	// remappable pin registers. UnbindPins releases the routing.
	BindPins()
	UnbindPins()

	// SetBaudDivisor programs the baud rate generator. A divisor of 0
	// stops the generator.
	SetBaudDivisor(divisor uint16)

	// SetModuleEnabled turns the peripheral on or off in the link's
	// wire mode. SetTxRxEnabled gates both directions.
	SetModuleEnabled(on bool)
	SetTxRxEnabled(on bool)

	// DataAvailable reports whether the receive register holds a byte.
	DataAvailable() bool

	// ReceiveError reports a framing or parity error flagged by the
	// hardware on the byte at the head of the receive FIFO.
	ReceiveError() bool

	// OverrunError reports the receive overrun flag. The flag must be
	// cleared with ClearOverrun or the peripheral stops receiving.
	OverrunError() bool
	ClearOverrun()

	// ReadData pops one byte from the receive register. WriteData
	// loads one byte into the transmit register.
	ReadData() byte
	WriteData(b byte)

	// TransmitBusy reports whether the hardware transmit buffer has
	// not yet drained.
	TransmitBusy() bool
}

// NVM abstracts the non-volatile program memory controller. Erase
// granularity is one page; write granularity is two consecutive
// double-words, each carrying three payload bytes below a phantom
// high byte.
type NVM interface {
	ErasePage(address uint32) error
	WriteDoubleWords(address uint32, low, high uint32) error
}

// EEPROM abstracts byte-addressed non-volatile configuration storage.
type EEPROM interface {
	ReadByte(address uint16) byte
	WriteByte(address uint16, value byte)
}

// Clock provides a millisecond timestamp source.
type Clock interface {
	Millis() uint32
}

// PinMux controls the tri-state buffer that can route the companion
// module's serial lines straight to the external header, bypassing
// the MCU. Once flipped there is no way back without a physical
// reset.
type PinMux interface {
	EnablePassthrough()
}
