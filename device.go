package bluebus

// Action tells the dispatch loop what a processed packet asked for.
type Action uint8

const (
	// ActionNone keeps servicing the link.
	ActionNone Action = iota
	// ActionStartApp hands control to the application image.
	ActionStartApp
	// ActionPassthrough rewired the serial lines past the MCU; the
	// loop has nothing left to service.
	ActionPassthrough
)

// Device wires the transport, the packet codec and the flash
// programmer into the bootloader's dispatch loop.
type Device struct {
	UART   *UART
	Flash  *Programmer
	EEPROM EEPROM

	// Mux, when set, enables the hardware pass-through mode on
	// request.
	Mux PinMux

	// Platform and Version are reported verbatim to the host.
	Platform string
	Version  string

	// JumpToApp hands control to the application image. Called when
	// the host requests a start or the link stays idle with no
	// session under way.
	JumpToApp func()

	clock Clock
}

// NewDevice assembles a device from its collaborators.
func NewDevice(u *UART, flash *Programmer, ee EEPROM, clock Clock) *Device {
	return &Device{UART: u, Flash: flash, EEPROM: ee, clock: clock}
}

// Process polls the transport and dispatches at most one packet.
func (d *Device) Process() Action {
	d.UART.Poll()
	pkt := ProcessPacket(d.UART)
	switch pkt.Status {
	case PacketIncomplete:
		return ActionNone
	case PacketBad:
		// A completed frame that fails its checksum is discarded;
		// whether to resend is the host's call.
		pkgLog.Debugf("discarding bad packet, command %#x", pkt.Command)
		return ActionNone
	}

	switch pkt.Command {
	case CmdPlatformRequest:
		if err := SendStringPacket(d.UART, CmdPlatformResponse, d.Platform); err != nil {
			pkgLog.Warnf("platform response dropped: %v", err)
		}
	case CmdVersionRequest:
		if err := SendStringPacket(d.UART, CmdVersionResponse, d.Version); err != nil {
			pkgLog.Warnf("version response dropped: %v", err)
		}
	case CmdWriteDataRequest:
		d.Flash.HandleWrite(d.UART, pkt)
	case CmdWriteSNRequest:
		WriteSerialNumber(d.UART, d.EEPROM, pkt)
	case CmdStartAppRequest:
		respond(d.UART, CmdStartAppResponse, nil)
		return ActionStartApp
	case CmdPassthroughRequest:
		respond(d.UART, CmdPassthroughResponse, nil)
		d.enterPassthrough()
		return ActionPassthrough
	default:
		pkgLog.Debugf("unhandled command %#x", pkt.Command)
	}
	return ActionNone
}

// enterPassthrough tears down the UART and flips the mux so the
// companion module's serial lines bypass the MCU. Only a physical
// reset brings the link back.
func (d *Device) enterPassthrough() {
	pkgLog.Infof("entering pass-through mode")
	d.UART.Close()
	if d.Mux != nil {
		d.Mux.EnablePassthrough()
	}
}

// Run services the link until the host starts the application, the
// link is rewired for pass-through, or the line stays idle for
// timeoutMillis with no programming session under way. On start or
// idle it hands control to JumpToApp.
func (d *Device) Run(timeoutMillis uint32) {
	last := d.clock.Millis()
	for {
		switch d.Process() {
		case ActionStartApp:
			d.jump()
			return
		case ActionPassthrough:
			return
		}
		if t := d.UART.LastRxMillis; t > last {
			last = t
		}
		if d.Flash.Session() == SessionNotStarted && d.clock.Millis()-last >= timeoutMillis {
			pkgLog.Debugf("no host activity for %vms, starting application", timeoutMillis)
			d.jump()
			return
		}
	}
}

func (d *Device) jump() {
	if d.JumpToApp != nil {
		d.JumpToApp()
	}
}
