package bluebus

// DefaultRxQueueSize is the capacity of the software receive queue.
const DefaultRxQueueSize = 256

// UART owns one hardware serial peripheral and buffers received bytes
// in a fixed-capacity circular queue. Poll is the only writer of the
// queue; on real hardware it runs from the receive interrupt while
// everything else consumes from the main loop.
type UART struct {
	port  UARTPort
	clock Clock

	rxQueue       []byte
	rxReadCursor  int
	rxWriteCursor int
	rxSize        int

	// LastRxMillis is the timestamp of the most recently buffered
	// byte. The dispatch loop uses it to detect a silent link.
	LastRxMillis uint32
}

// NewUART binds the peripheral's register block, routes the RX/TX
// pins, programs the baud divisor and enables the module in both
// directions. The returned device is ready for traffic.
func NewUART(port UARTPort, clock Clock, baudDivisor uint16) *UART {
	u := &UART{
		port:    port,
		clock:   clock,
		rxQueue: make([]byte, DefaultRxQueueSize),
	}
	port.BindPins()
	port.SetBaudDivisor(baudDivisor)
	port.SetModuleEnabled(true)
	port.SetTxRxEnabled(true)
	return u
}

// Close disables both directions, resets the baud divisor and unbinds
// the pin routing. It is only used when switching the link to the
// hardware pass-through mode; there is no way back without a physical
// reset.
func (u *UART) Close() {
	u.port.SetTxRxEnabled(false)
	u.port.SetBaudDivisor(0)
	u.port.SetModuleEnabled(false)
	u.port.UnbindPins()
}

// Buffered returns the number of bytes waiting in the receive queue.
func (u *UART) Buffered() int {
	return u.rxSize
}

// Poll drains the hardware receive register into the circular queue.
// The overrun flag is always cleared so the peripheral keeps
// receiving. Bytes flagged with a framing or parity error, and bytes
// arriving while the queue is full, are dropped; the link has no
// backpressure.
func (u *UART) Poll() {
	for u.port.DataAvailable() {
		hasErr := u.port.ReceiveError()
		if u.port.OverrunError() {
			u.port.ClearOverrun()
		}
		b := u.port.ReadData()
		if u.rxSize < len(u.rxQueue) && !hasErr {
			if u.rxWriteCursor == len(u.rxQueue) {
				u.rxWriteCursor = 0
			}
			u.rxQueue[u.rxWriteCursor] = b
			u.rxWriteCursor++
			u.rxSize++
			u.LastRxMillis = u.clock.Millis()
		}
	}
}

// NextByte pops and returns the oldest buffered byte. Callers must
// check Buffered first: calling with an empty queue returns 0x00, the
// defined no-data value, because consumed slots are zeroed.
func (u *UART) NextByte() byte {
	data := u.rxQueue[u.rxReadCursor]
	u.rxQueue[u.rxReadCursor] = 0x00
	u.rxReadCursor++
	if u.rxReadCursor >= len(u.rxQueue) {
		u.rxReadCursor = 0
	}
	if u.rxSize > 0 {
		u.rxSize--
	}
	return data
}

// ByteAt returns the byte offset positions ahead of the read cursor
// without consuming it. The codec uses it to look at a frame's
// declared length before the whole frame has arrived.
func (u *UART) ByteAt(offset int) byte {
	cursor := u.rxReadCursor
	for offset > 0 {
		cursor++
		if cursor >= len(u.rxQueue) {
			cursor = 0
		}
		offset--
	}
	return u.rxQueue[cursor]
}

// Send writes each byte to the transmit register, waiting for the
// hardware buffer to drain before loading the next. The caller is
// blocked for the full transmission; there is no concurrent transmit.
func (u *UART) Send(data []byte) {
	for _, b := range data {
		u.port.WriteData(b)
		for u.port.TransmitBusy() {
		}
	}
}

// ResetRxQueue discards all buffered bytes without reading them.
func (u *UART) ResetRxQueue() {
	for i := range u.rxQueue {
		u.rxQueue[i] = 0x00
	}
	u.rxSize = 0
	u.rxReadCursor = 0
	u.rxWriteCursor = 0
}
