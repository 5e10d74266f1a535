package cart

// MBC2 folds RAM enable and ROM bank select into one register range, split
// by address bit 8: bit clear controls RAM enable, bit set selects the bank.
// The built-in 512-nibble RAM shares the generic cart-RAM path.
func (m *MBC) writeMBC2(addr uint16, val byte) bool {
	if addr >= 0x4000 {
		return false
	}
	if addr&0x0100 == 0 {
		m.RAMEnable = (val & 0x0F) == 0x0A
	} else {
		b := uint16(val & 0x0F)
		if b == 0 {
			b = 1
		}
		m.ROMBank = b
	}
	return true
}
