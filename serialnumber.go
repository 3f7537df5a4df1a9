package bluebus

// EEPROM cell addresses holding the device serial number.
const (
	SNAddrMSB uint16 = 0x00
	SNAddrLSB uint16 = 0x01
)

// SerialNumber reads the stored 16-bit serial number. Zero means the
// number has never been written.
func SerialNumber(ee EEPROM) uint16 {
	return uint16(ee.ReadByte(SNAddrMSB))<<8 | uint16(ee.ReadByte(SNAddrLSB))
}

// WriteSerialNumber persists the two payload bytes (MSB, LSB) and
// responds OK, but only while the stored value is still zero. Once
// set the serial number is immutable: every later attempt responds
// ERR and leaves storage untouched.
func WriteSerialNumber(u *UART, ee EEPROM, pkt Packet) {
	if len(pkt.Data) < 2 {
		respond(u, CmdWriteSNResponseErr, nil)
		return
	}
	if SerialNumber(ee) != 0 {
		pkgLog.Debugf("serial number already set, refusing rewrite")
		respond(u, CmdWriteSNResponseErr, nil)
		return
	}
	ee.WriteByte(SNAddrMSB, pkt.Data[0])
	ee.WriteByte(SNAddrLSB, pkt.Data[1])
	respond(u, CmdWriteSNResponseOK, nil)
}
