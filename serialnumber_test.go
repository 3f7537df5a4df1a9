package bluebus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSerialNumberFirstWriteSucceeds(t *testing.T) {
	u, port, _ := newTestUART()
	ee := NewMemEEPROM()

	pkt := Packet{Command: CmdWriteSNRequest, Data: []byte{0x12, 0x34}, Status: PacketOK}
	WriteSerialNumber(u, ee, pkt)

	require.Equal(t, uint16(0x1234), SerialNumber(ee))
	require.Equal(t, byte(0x12), ee.ReadByte(SNAddrMSB))
	require.Equal(t, byte(0x34), ee.ReadByte(SNAddrLSB))
	require.Equal(t, respFrame(CmdWriteSNResponseOK), port.Tx)
}

func TestWriteSerialNumberIsOneShot(t *testing.T) {
	u, port, _ := newTestUART()
	ee := NewMemEEPROM()

	WriteSerialNumber(u, ee, Packet{Command: CmdWriteSNRequest, Data: []byte{0x12, 0x34}, Status: PacketOK})
	port.Tx = nil

	// Every later attempt fails cleanly, whatever the payload.
	for _, payload := range [][]byte{{0x56, 0x78}, {0x12, 0x34}, {0x00, 0x00}} {
		WriteSerialNumber(u, ee, Packet{Command: CmdWriteSNRequest, Data: payload, Status: PacketOK})
		require.Equal(t, respFrame(CmdWriteSNResponseErr), port.Tx)
		require.Equal(t, uint16(0x1234), SerialNumber(ee))
		port.Tx = nil
	}
}

func TestWriteSerialNumberShortPayload(t *testing.T) {
	u, port, _ := newTestUART()
	ee := NewMemEEPROM()

	WriteSerialNumber(u, ee, Packet{Command: CmdWriteSNRequest, Data: []byte{0x12}, Status: PacketOK})
	require.Equal(t, uint16(0), SerialNumber(ee))
	require.Equal(t, respFrame(CmdWriteSNResponseErr), port.Tx)
}
