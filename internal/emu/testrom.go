package emu

// SyntheticROM builds a 32 KiB ROM-only image that boots, paints a simple
// tile pattern, enables the VBlank interrupt and spins. Runners fall back to
// it when no ROM is supplied, and tests use it as a known-good cartridge.
func SyntheticROM(title string) []byte {
	rom := make([]byte, 0x8000)
	rom[0x0100] = 0x00 // NOP
	rom[0x0101] = 0xC3 // JP 0x0150
	rom[0x0102] = 0x50
	rom[0x0103] = 0x01
	for i := 0; i < len(title) && i < 15; i++ {
		rom[0x0134+i] = title[i]
	}
	rom[0x0147] = 0x00 // ROM only
	rom[0x0148] = 0x00
	rom[0x0149] = 0x00
	rom[0x014D] = 0xE7

	prog := []byte{
		0x3E, 0x00, 0xE0, 0x40, // LD A,0 / LDH (40),A  -- LCD off
		0x01, 0x00, 0x80, // LD BC,0x8000
		0x3E, 0xAA, 0x02, 0x03, // LD A,AA / LD (BC),A / INC BC
		0x3E, 0x55, 0x02, 0x03,
		0x3E, 0xAA, 0x02, 0x03,
		0x3E, 0x55, 0x02, 0x03,
		0x01, 0x00, 0x98, // LD BC,0x9800
		0x3E, 0x00, 0x02, // LD A,0 / LD (BC),A
		0x3E, 0x91, 0xE0, 0x40, // LCD on, BG on
		0x3E, 0x01, 0xE0, 0xFF, // IE = 1 (VBlank)
		0xFB,             // EI
		0xC3, 0x76, 0x01, // JP spin
	}
	copy(rom[0x0150:], prog)
	return rom
}
