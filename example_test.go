package bluebus

import (
	"fmt"
	"log"
)

func Example() {
	// Assemble a device. On hardware the UARTPort, NVM and EEPROM
	// implementations wrap the real register blocks; the in-memory
	// ones stand in here.
	port := &SimPort{}
	clock := &FakeClock{Step: 1}
	uart := NewUART(port, clock, 51)
	device := NewDevice(uart, NewProgrammer(NewMemNVM(DefaultMemoryMap.PageSize), DefaultMemoryMap), NewMemEEPROM(), clock)
	device.Platform = "BLUEBUS"
	device.Version = "1.2.0"

	// A host drives the same link from the other end, normally over
	// an open serial port.
	flasher, err := NewFlasher(&simLink{dev: device, port: port}, FlasherOptions{})
	if err != nil {
		log.Fatalf("failed to initialise flasher: %v", err)
	}

	platform, err := flasher.Platform()
	if err != nil {
		log.Fatal(err)
	}
	version, err := flasher.Version()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%v %v\n", platform, version)
	// Output: BLUEBUS 1.2.0
}
