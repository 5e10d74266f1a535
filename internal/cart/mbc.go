package cart

// rtcNone marks no RTC register mapped into the external-RAM window.
const rtcNone = 0xFF

// MBC models the cartridge's memory-bank controller as one tagged state
// machine. The bus forwards every write below 0x8000 to OnWrite; when the
// write lands in a banking register the MBC consumes it and the bus leaves
// memory untouched. ROMOffset translates a guest address into a physical
// byte offset using the current bank selection.
type MBC struct {
	Kind Kind

	ROMBank   uint16 // never 0 for the switchable bank on MBC1/MBC3
	RAMBank   byte
	RAMEnable bool

	// MBC1 only
	Mode      byte // 0: ROM banking, 1: RAM banking
	UpperBits byte // two bits, routed to ROM bank 5-6 or RAM bank per Mode

	// MBC3 RTC
	RTCRegs    [5]byte
	RTCLatch   [5]byte
	RTCSelect  byte // 0..4 or rtcNone
	latchArmed bool // a 0x00 was written to 0x6000-0x7FFF; next 0x01 latches
}

// NewMBC returns a controller in its power-on state: bank 1 selected,
// RAM disabled.
func NewMBC(kind Kind) *MBC {
	return &MBC{Kind: kind, ROMBank: 1, RTCSelect: rtcNone}
}

// OnWrite decodes a guest write in 0x0000-0x7FFF. It reports whether the
// write was a banking-register access; unhandled writes fall through to the
// bus (which drops them, since ROM is not writable).
func (m *MBC) OnWrite(addr uint16, val byte) bool {
	switch m.Kind {
	case MBC1:
		return m.writeMBC1(addr, val)
	case MBC2:
		return m.writeMBC2(addr, val)
	case MBC3:
		return m.writeMBC3(addr, val)
	case MBC5:
		return m.writeMBC5(addr, val)
	default:
		return false
	}
}

// ROMOffset maps a guest ROM address to its physical byte offset: the fixed
// bank for 0x0000-0x3FFF and the selected bank for 0x4000-0x7FFF.
func (m *MBC) ROMOffset(addr uint16) int {
	if addr < 0x4000 {
		return int(addr)
	}
	return int(m.ROMBank)*0x4000 + int(addr-0x4000)
}

// RTCActive reports whether external-RAM accesses currently hit an RTC
// register instead of cart RAM.
func (m *MBC) RTCActive() bool {
	return m.Kind == MBC3 && m.RTCSelect != rtcNone
}

// RTCRead returns the latched value of the selected RTC register.
func (m *MBC) RTCRead() byte {
	if !m.RTCActive() {
		return 0xFF
	}
	return m.RTCLatch[m.RTCSelect]
}

// RTCWrite updates the live value of the selected RTC register.
func (m *MBC) RTCWrite(val byte) {
	if m.RTCActive() {
		m.RTCRegs[m.RTCSelect] = val
	}
}
