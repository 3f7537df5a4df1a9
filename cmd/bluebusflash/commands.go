package main

import (
	"os"
	"strconv"

	bluebus "github.com/Ketan1993/BlueBus"
	log "github.com/sirupsen/logrus"
)

func processPlatform(flasher *bluebus.Flasher, args []string) {
	platform, err := flasher.Platform()
	if err != nil {
		log.Fatalf("failed to read platform: %v", err)
	}
	log.Infof("platform: %v", platform)
}

func processVersion(flasher *bluebus.Flasher, args []string) {
	version, err := flasher.Version()
	if err != nil {
		log.Fatalf("failed to read version: %v", err)
	}
	log.Infof("bootloader version: %v", version)
}

func processWriteSN(flasher *bluebus.Flasher, args []string) {
	if len(args) != 1 {
		log.Fatal("expected: serial number")
	}
	sn, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		log.Fatalf("invalid serial number: %v", err)
	}
	if sn == 0 {
		log.Fatal("serial number 0 means unset and cannot be written")
	}
	if err := flasher.WriteSerialNumber(uint16(sn)); err != nil {
		log.Fatalf("failed to write serial number: %v", err)
	}
	log.Infof("serial number set to %#04x", sn)
}

func processStartApp(flasher *bluebus.Flasher, args []string) {
	if err := flasher.StartApplication(); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}
	log.Info("application started")
}

func processPassthrough(flasher *bluebus.Flasher, args []string) {
	if err := flasher.EnterPassthrough(); err != nil {
		log.Fatalf("failed to enter pass-through mode: %v", err)
	}
	log.Info("pass-through mode enabled; power cycle the device to return")
}

func processProgram(flasher *bluebus.Flasher, hexFile string) {
	file, err := os.Open(hexFile)
	if err != nil {
		log.Fatalf("failed to open hex file: %v", err)
	}
	defer file.Close()

	if err := flasher.LoadHex(file); err != nil {
		log.Fatalf("failed to load hex file: %v", err)
	}
	log.Info("hex file loaded")

	log.Info("programming...")
	if err := flasher.Program(); err != nil {
		log.Fatalf("programming failed: %v", err)
	}

	log.Info("starting application...")
	if err := flasher.StartApplication(); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}
	log.Info("complete")
}
