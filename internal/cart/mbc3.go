package cart

// MBC3: full 7-bit ROM bank writes, RAM bank or RTC register select, and the
// 0x00-then-0x01 latch sequence that freezes the live clock registers into
// the readable latch.
func (m *MBC) writeMBC3(addr uint16, val byte) bool {
	switch {
	case addr < 0x2000:
		m.RAMEnable = (val & 0x0F) == 0x0A
		return true
	case addr < 0x4000:
		b := uint16(val & 0x7F)
		if b == 0 {
			b = 1
		}
		m.ROMBank = b
		return true
	case addr < 0x6000:
		if val >= 0x08 && val <= 0x0C {
			m.RTCSelect = val - 0x08
		} else {
			m.RAMBank = val & 0x07
			m.RTCSelect = rtcNone
		}
		return true
	case addr < 0x8000:
		if val == 0x00 {
			m.latchArmed = true
		} else if val == 0x01 && m.latchArmed {
			m.RTCLatch = m.RTCRegs
			m.latchArmed = false
		} else {
			m.latchArmed = false
		}
		return true
	}
	return false
}
