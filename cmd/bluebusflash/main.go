package main

import (
	"flag"
	"fmt"
	"os"

	bluebus "github.com/Ketan1993/BlueBus"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
	"gopkg.in/yaml.v2"
)

var commands = map[string]func(*bluebus.Flasher, []string){
	"platform":    processPlatform,
	"version":     processVersion,
	"writesn":     processWriteSN,
	"startapp":    processStartApp,
	"passthrough": processPassthrough,
}

// deviceProfile is the yaml description of the target's memory layout
// and link parameters.
type deviceProfile struct {
	ChunkSize int `yaml:"chunkSize"`
	Memory    struct {
		BootloaderStart  uint32 `yaml:"bootloaderStart"`
		ApplicationStart uint32 `yaml:"applicationStart"`
		ApplicationEnd   uint32 `yaml:"applicationEnd"`
		PageSize         uint32 `yaml:"pageSize"`
	} `yaml:"memory"`
}

const appVersion = "1.0.0"

func main() {
	version := flag.Bool("version", false, "Prints the program version.")
	port := flag.String("port", "", "Serial port name.")
	baud := flag.Int("baud", 115200, "Baud rate.")
	verbose := flag.Bool("v", false, "Enable verbose logging.")
	profilePath := flag.String("profile", "", "Device profile yaml file. Example:\n\n"+exampleProfile())

	cmdList := []string{}
	for key := range commands {
		cmdList = append(cmdList, key)
	}
	command := flag.String("cmd", "", fmt.Sprintf("Command to run, one of: %+v\n"+
		"writesn takes the serial number as an argument, e.g. writesn 0x1234\n"+
		"With no -cmd, the single positional argument is a HEX file to program.", cmdList))

	flag.Parse()

	if *version {
		fmt.Println(appVersion)
		return
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	bluebus.SetLogger(log.StandardLogger())

	if *port == "" {
		log.Fatal("must specify port")
	}

	profile := loadProfile(*profilePath)

	s, err := serial.OpenPort(&serial.Config{Name: *port, Baud: *baud})
	if err != nil {
		log.Fatalf("failed to open port: %v", err)
	}
	defer s.Close()

	memory := bluebus.MemoryMap{
		BootloaderStart:  profile.Memory.BootloaderStart,
		ApplicationStart: profile.Memory.ApplicationStart,
		ApplicationEnd:   profile.Memory.ApplicationEnd,
		PageSize:         profile.Memory.PageSize,
	}
	flasher, err := bluebus.NewFlasher(s, bluebus.FlasherOptions{
		ChunkSize: profile.ChunkSize,
		Memory:    &memory,
	})
	if err != nil {
		log.Fatalf("failed to initialise flasher: %v", err)
	}

	switch {
	case *command != "":
		f, ok := commands[*command]
		if !ok {
			log.Fatalf("invalid command %v", *command)
		}
		f(flasher, flag.Args())

	default:
		// Program a hex file
		if len(flag.Args()) != 1 {
			log.Fatal("must specify hex file to program")
		}
		processProgram(flasher, flag.Args()[0])
	}
}

func loadProfile(path string) deviceProfile {
	profile := deviceProfile{}
	profile.Memory.BootloaderStart = bluebus.DefaultMemoryMap.BootloaderStart
	profile.Memory.ApplicationStart = bluebus.DefaultMemoryMap.ApplicationStart
	profile.Memory.ApplicationEnd = bluebus.DefaultMemoryMap.ApplicationEnd
	profile.Memory.PageSize = bluebus.DefaultMemoryMap.PageSize
	if path == "" {
		return profile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read profile: %v", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		log.Fatalf("failed to parse profile: %v", err)
	}
	return profile
}

func exampleProfile() string {
	p := deviceProfile{ChunkSize: 144}
	p.Memory.BootloaderStart = bluebus.DefaultMemoryMap.BootloaderStart
	p.Memory.ApplicationStart = bluebus.DefaultMemoryMap.ApplicationStart
	p.Memory.ApplicationEnd = bluebus.DefaultMemoryMap.ApplicationEnd
	p.Memory.PageSize = bluebus.DefaultMemoryMap.PageSize
	out, _ := yaml.Marshal(p)
	return string(out)
}
