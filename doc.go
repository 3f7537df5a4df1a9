// Package bluebus implements the BlueBus in-field update core: a
// buffered serial transport, the framed XOR-checksummed packet
// protocol layered on top of it, and the flash programming state
// machine that lets a host erase and reprogram the device's
// application image over a point-to-point serial link.
//
// The package contains two halves. The device half (UART, Device,
// Programmer) runs against injected hardware abstractions (UARTPort,
// NVM, EEPROM, Clock) so the protocol and memory-protection logic can
// be exercised off-target; in-memory implementations of every
// abstraction are provided. The host half (Flasher) speaks the same
// frame format over any io.ReadWriter, typically a serial port, and
// can load Intel HEX images.
//
// Also included is a command line tool, found in the cmd/bluebusflash
// directory, that serves as both an example on how to use the host API
// and a fully functional flashing tool.
package bluebus
