package bluebus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// simLink connects a Flasher to a simulated device: host writes land
// on the device's receive register, and reads service the device loop
// until it has transmitted a response.
type simLink struct {
	dev  *Device
	port *SimPort
}

func (l *simLink) Write(p []byte) (int, error) {
	l.port.Feed(p...)
	return len(p), nil
}

func (l *simLink) Read(p []byte) (int, error) {
	for len(l.port.Tx) == 0 {
		l.dev.Process()
	}
	n := copy(p, l.port.Tx)
	l.port.Tx = l.port.Tx[n:]
	return n, nil
}

func newTestLink(t *testing.T, chunkSize int) (*Flasher, *Device, *MemNVM) {
	t.Helper()
	dev, port, nvm, _ := newTestDevice()
	flasher, err := NewFlasher(&simLink{dev: dev, port: port}, FlasherOptions{ChunkSize: chunkSize})
	require.NoError(t, err)
	return flasher, dev, nvm
}

func TestFlasherProgramEndToEnd(t *testing.T) {
	flasher, dev, nvm := newTestLink(t, 12)

	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i + 1)
	}
	flasher.AddImage(Image{Addr: 0, Data: data})
	require.NoError(t, flasher.Program())

	require.Equal(t, SessionInProgress, dev.Flash.Session())
	// The erase repaired the reset vector and the protected first
	// words were skipped, not overwritten.
	require.Equal(t, uint32(gotoOpcode+testMap.BootloaderStart), nvm.Word(0))
	require.Equal(t, uint32(0x070809), nvm.Word(0x4))
	require.Equal(t, uint32(0x0A0B0C), nvm.Word(0x6))
	// The second chunk landed where the host's address accounting
	// says it should.
	require.Equal(t, uint32(0x0D0E0F), nvm.Word(0x8))
	require.Equal(t, uint32(0x101112), nvm.Word(0xA))
	require.Equal(t, uint32(0x131415), nvm.Word(0xC))
	require.Equal(t, uint32(0x161718), nvm.Word(0xE))
}

func TestFlasherProgramReportsDeviceError(t *testing.T) {
	flasher, _, nvm := newTestLink(t, 12)
	nvm.FailWrites = true
	nvm.FailWriteAt = 0x8

	flasher.AddImage(Image{Addr: 0, Data: make([]byte, 24)})
	err := flasher.Program()
	require.Error(t, err)
	require.Contains(t, err.Error(), "write at 0x8")
}

func TestFlasherProgramRequiresAddressZero(t *testing.T) {
	flasher, _, _ := newTestLink(t, 12)
	flasher.AddImage(Image{Addr: 0x800, Data: make([]byte, 12)})

	err := flasher.Program()
	require.Error(t, err)
	require.Contains(t, err.Error(), "address 0")
}

func TestFlasherProgramWithoutImages(t *testing.T) {
	flasher, _, _ := newTestLink(t, 12)
	require.Error(t, flasher.Program())
}

func TestNewFlasherChunkSizeValidation(t *testing.T) {
	tests := []struct {
		chunkSize int
		wantErr   bool
	}{
		{0, false}, // default
		{6, false},
		{12, false},
		{MaxChunkSize, false},
		{7, true},
		{-6, true},
		{MaxChunkSize + 6, true},
	}
	for _, tt := range tests {
		_, err := NewFlasher(&simLink{}, FlasherOptions{ChunkSize: tt.chunkSize})
		if tt.wantErr {
			require.Error(t, err, "chunk size %v", tt.chunkSize)
		} else {
			require.NoError(t, err, "chunk size %v", tt.chunkSize)
		}
	}
}

func TestFlasherWriteSerialNumber(t *testing.T) {
	flasher, dev, _ := newTestLink(t, 12)

	require.NoError(t, flasher.WriteSerialNumber(0xBEEF))
	require.Equal(t, uint16(0xBEEF), SerialNumber(dev.EEPROM))

	// The device refuses a second write.
	err := flasher.WriteSerialNumber(0x1234)
	require.Error(t, err)
	require.Equal(t, uint16(0xBEEF), SerialNumber(dev.EEPROM))
}

func TestFlasherPlatformAndVersion(t *testing.T) {
	flasher, _, _ := newTestLink(t, 12)

	platform, err := flasher.Platform()
	require.NoError(t, err)
	require.Equal(t, "BLUEBUS", platform)

	version, err := flasher.Version()
	require.NoError(t, err)
	require.Equal(t, "1.2.0", version)
}

func TestFlasherStartApplication(t *testing.T) {
	flasher, dev, _ := newTestLink(t, 12)
	jumped := false
	dev.JumpToApp = func() { jumped = true }

	require.NoError(t, flasher.StartApplication())
	// The response frame is the device's last act before jumping; the
	// jump itself belongs to the dispatch loop, not Process.
	require.False(t, jumped)
}

func TestFlasherEnterPassthrough(t *testing.T) {
	flasher, dev, _ := newTestLink(t, 12)
	mux := &SimMux{}
	dev.Mux = mux

	require.NoError(t, flasher.EnterPassthrough())
	require.True(t, mux.Passthrough)
}

func TestFlasherLoadHex(t *testing.T) {
	flasher, _, _ := newTestLink(t, 12)

	hex := strings.Join([]string{
		":100000000102030405060708090A0B0C0D0E0F1068",
		":00000001FF",
	}, "\n") + "\n"
	require.NoError(t, flasher.LoadHex(strings.NewReader(hex)))

	require.Len(t, flasher.images, 1)
	require.Equal(t, uint32(0), flasher.images[0].Addr)
	require.Equal(t,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		flasher.images[0].Data)
}
