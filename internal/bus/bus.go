package bus

import (
	"github.com/EvezArt/metarom-go/internal/apu"
	"github.com/EvezArt/metarom-go/internal/cart"
	"github.com/EvezArt/metarom-go/internal/ppu"
	"github.com/EvezArt/metarom-go/internal/timer"
)

// Interrupt bit positions in IE/IF.
const (
	IRQVBlank = 0
	IRQStat   = 1
	IRQTimer  = 2
	IRQSerial = 3 // present in the mask, never raised
	IRQJoypad = 4
)

// Joypad button bitmasks for SetJoypadState; set bits mean pressed.
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

// Bus owns every memory array in the machine and dispatches 16-bit guest
// accesses to ROM (through the MBC), VRAM, WRAM, OAM, HRAM, IO registers and
// CGB palette RAM. Subsystem interrupts funnel through the IF byte here; no
// component holds a pointer back to the CPU.
type Bus struct {
	rom []byte
	ram []byte // cart RAM, banked through the MBC
	cgb bool

	vram [2][0x2000]byte
	wram [8][0x1000]byte
	hram [0x7F]byte
	oam  [0xA0]byte
	io   [0x80]byte

	ie    byte
	ifReg byte

	mbc *cart.MBC
	ppu *ppu.PPU
	tmr *timer.Timer
	snd *apu.APU

	vramBank byte
	wramBank byte

	doubleSpeed bool
	speedArmed  bool

	// CGB palette RAM with the BCPS/OCPS index registers.
	bgPal  [64]byte
	objPal [64]byte
	bcps   byte
	ocps   byte

	// joypad matrix
	joypSelect byte
	buttons    byte
	joypLower4 byte
}

// New consumes the cartridge: the bus takes ownership of its ROM and RAM.
func New(c *cart.Cartridge, sampleRate int) *Bus {
	b := &Bus{
		rom:        c.ROM,
		ram:        c.RAM,
		cgb:        c.IsCGB,
		mbc:        cart.NewMBC(c.Kind),
		ppu:        ppu.New(),
		tmr:        timer.New(),
		snd:        apu.New(sampleRate),
		wramBank:   1,
		joypLower4: 0x0F,
	}
	return b
}

func (b *Bus) MBC() *cart.MBC      { return b.mbc }
func (b *Bus) PPU() *ppu.PPU      { return b.ppu }
func (b *Bus) Timer() *timer.Timer { return b.tmr }
func (b *Bus) APU() *apu.APU      { return b.snd }
func (b *Bus) CGB() bool          { return b.cgb }
func (b *Bus) DoubleSpeed() bool  { return b.doubleSpeed }
func (b *Bus) VRAMBank() byte     { return b.vramBank }
func (b *Bus) WRAMBank() byte     { return b.wramBank }

// SetDoubleSpeed restores the speed flag, for state loading.
func (b *Bus) SetDoubleSpeed(v bool) { b.doubleSpeed = v }

// SetVRAMBank restores the VRAM bank selector, for state loading.
func (b *Bus) SetVRAMBank(v byte) { b.vramBank = v & 1 }

// SetWRAMBank restores the WRAM bank selector, for state loading.
func (b *Bus) SetWRAMBank(v byte) {
	v &= 7
	if v == 0 {
		v = 1
	}
	b.wramBank = v
}

// VRAM returns the backing array for one VRAM bank.
func (b *Bus) VRAM(bank int) *[0x2000]byte { return &b.vram[bank&1] }

// WRAM returns the backing array for one WRAM bank.
func (b *Bus) WRAM(bank int) *[0x1000]byte { return &b.wram[bank&7] }

// HRAM returns the high-RAM backing array.
func (b *Bus) HRAM() *[0x7F]byte { return &b.hram }

// OAM returns the sprite-attribute backing array.
func (b *Bus) OAM() *[0xA0]byte { return &b.oam }

// BGPaletteRAM returns the CGB background palette bytes.
func (b *Bus) BGPaletteRAM() *[64]byte { return &b.bgPal }

// OBJPaletteRAM returns the CGB object palette bytes.
func (b *Bus) OBJPaletteRAM() *[64]byte { return &b.objPal }

// CartRAM exposes the cartridge RAM for battery persistence.
func (b *Bus) CartRAM() []byte { return b.ram }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		off := b.mbc.ROMOffset(addr)
		if off < len(b.rom) {
			return b.rom[off]
		}
		return 0xFF
	case addr < 0xA000:
		return b.vram[b.vramBank][addr-0x8000]
	case addr < 0xC000:
		if b.mbc.RTCActive() {
			return b.mbc.RTCRead()
		}
		if !b.mbc.RAMEnable {
			return 0xFF
		}
		off := int(b.mbc.RAMBank)*0x2000 + int(addr-0xA000)
		if off < len(b.ram) {
			return b.ram[off]
		}
		return 0xFF
	case addr < 0xD000:
		return b.wram[0][addr-0xC000]
	case addr < 0xE000:
		return b.wram[b.wramBank][addr-0xD000]
	case addr < 0xFE00:
		return b.Read(addr - 0x2000) // echo RAM
	case addr < 0xFEA0:
		return b.oam[addr-0xFE00]
	case addr < 0xFF00:
		return 0xFF // prohibited region
	case addr == 0xFFFF:
		return b.ie
	default:
		return b.readIO(addr)
	}
}

func (b *Bus) readIO(addr uint16) byte {
	switch {
	case addr == 0xFF00:
		return b.readJoypad()
	case addr >= 0xFF04 && addr <= 0xFF07:
		return b.tmr.Read(byte(addr - 0xFF00))
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return 0xFF // APU registers read back as open bus in this model
	case addr >= 0xFF40 && addr <= 0xFF4B && addr != 0xFF46:
		return b.ppu.ReadReg(byte(addr - 0xFF00))
	case addr == 0xFF46:
		return b.io[0x46]
	case addr == 0xFF4D:
		if !b.cgb {
			return 0xFF
		}
		v := byte(0x7E)
		if b.doubleSpeed {
			v |= 0x80
		}
		if b.speedArmed {
			v |= 0x01
		}
		return v
	case addr == 0xFF4F:
		if !b.cgb {
			return 0xFF
		}
		return 0xFE | b.vramBank
	case addr == 0xFF68:
		return b.bcps
	case addr == 0xFF69:
		if !b.cgb {
			return 0xFF
		}
		return b.bgPal[b.bcps&0x3F]
	case addr == 0xFF6A:
		return b.ocps
	case addr == 0xFF6B:
		if !b.cgb {
			return 0xFF
		}
		return b.objPal[b.ocps&0x3F]
	case addr == 0xFF70:
		if !b.cgb {
			return 0xFF
		}
		return 0xF8 | b.wramBank
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, val byte) {
	switch {
	case addr < 0x8000:
		b.mbc.OnWrite(addr, val) // ROM itself is never written
	case addr < 0xA000:
		b.vram[b.vramBank][addr-0x8000] = val
	case addr < 0xC000:
		if b.mbc.RTCActive() {
			b.mbc.RTCWrite(val)
			return
		}
		if !b.mbc.RAMEnable {
			return
		}
		off := int(b.mbc.RAMBank)*0x2000 + int(addr-0xA000)
		if off < len(b.ram) {
			b.ram[off] = val
		}
	case addr < 0xD000:
		b.wram[0][addr-0xC000] = val
	case addr < 0xE000:
		b.wram[b.wramBank][addr-0xD000] = val
	case addr < 0xFE00:
		b.Write(addr-0x2000, val) // echo RAM
	case addr < 0xFEA0:
		b.oam[addr-0xFE00] = val
	case addr < 0xFF00:
		// prohibited: dropped
	case addr == 0xFFFF:
		b.ie = val
	default:
		b.writeIO(addr, val)
	}
}

func (b *Bus) writeIO(addr uint16, val byte) {
	switch {
	case addr == 0xFF00:
		b.joypSelect = val & 0x30
		b.updateJoypadIRQ()
	case addr >= 0xFF04 && addr <= 0xFF07:
		b.tmr.Write(byte(addr-0xFF00), val)
	case addr == 0xFF0F:
		b.ifReg = val & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.snd.WriteReg(addr, val)
	case addr == 0xFF46:
		b.io[0x46] = val
		b.oamDMA(val)
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.WriteReg(byte(addr-0xFF00), val)
	case addr == 0xFF4D:
		if b.cgb {
			b.speedArmed = val&0x01 != 0
		}
	case addr == 0xFF4F:
		if b.cgb {
			b.vramBank = val & 0x01
		}
	case addr == 0xFF68:
		b.bcps = val & 0xBF
	case addr == 0xFF69:
		if b.cgb {
			b.bgPal[b.bcps&0x3F] = val
			b.bcps = autoIncrement(b.bcps)
		}
	case addr == 0xFF6A:
		b.ocps = val & 0xBF
	case addr == 0xFF6B:
		if b.cgb {
			b.objPal[b.ocps&0x3F] = val
			b.ocps = autoIncrement(b.ocps)
		}
	case addr == 0xFF70:
		if b.cgb {
			v := val & 0x07
			if v == 0 {
				v = 1
			}
			b.wramBank = v
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = val
	default:
		if addr >= 0xFF00 && addr < 0xFF80 {
			b.io[addr-0xFF00] = val // absorbed
		}
	}
}

// autoIncrement bumps a palette index register when its bit 7 is set. Only
// the low six bits move; bit 6 stays reserved.
func autoIncrement(idx byte) byte {
	if idx&0x80 == 0 {
		return idx
	}
	return 0x80 | ((idx + 1) & 0x3F)
}

// oamDMA copies 160 bytes from val<<8 into OAM.
func (b *Bus) oamDMA(val byte) {
	src := uint16(val) << 8
	for i := uint16(0); i < 0xA0; i++ {
		b.oam[i] = b.Read(src + i)
	}
}

// StepSubsystems runs PPU, timer and APU for the given number of T-cycles
// (halved while double speed is engaged, since peripherals do not speed up)
// and ORs the raised interrupts into IF.
func (b *Bus) StepSubsystems(cycles int) {
	if b.doubleSpeed {
		cycles = (cycles + 1) / 2
	}
	b.ppu.Step(cycles, b.vram[0][:], b.oam[:])
	if b.ppu.VBlankIRQ {
		b.ifReg |= 1 << IRQVBlank
	}
	if b.ppu.STATIRQ {
		b.ifReg |= 1 << IRQStat
	}
	b.tmr.Step(cycles)
	if b.tmr.OverflowIRQ {
		b.ifReg |= 1 << IRQTimer
	}
	b.snd.Step(cycles)
}

// ToggleSpeed swaps the CGB double-speed mode if a switch is armed. STOP
// calls this; it is a no-op otherwise.
func (b *Bus) ToggleSpeed() {
	if b.speedArmed {
		b.doubleSpeed = !b.doubleSpeed
		b.speedArmed = false
	}
}

// SetJoypadState records the currently pressed buttons and raises the joypad
// interrupt on any released→pressed edge visible through the current select.
func (b *Bus) SetJoypadState(mask byte) {
	b.buttons = mask
	b.updateJoypadIRQ()
}

func (b *Bus) joypadLower4() byte {
	lower := byte(0x0F)
	if b.joypSelect&0x10 == 0 { // d-pad row
		if b.buttons&JoypRight != 0 {
			lower &^= 0x01
		}
		if b.buttons&JoypLeft != 0 {
			lower &^= 0x02
		}
		if b.buttons&JoypUp != 0 {
			lower &^= 0x04
		}
		if b.buttons&JoypDown != 0 {
			lower &^= 0x08
		}
	}
	if b.joypSelect&0x20 == 0 { // button row
		if b.buttons&JoypA != 0 {
			lower &^= 0x01
		}
		if b.buttons&JoypB != 0 {
			lower &^= 0x02
		}
		if b.buttons&JoypSelectBtn != 0 {
			lower &^= 0x04
		}
		if b.buttons&JoypStart != 0 {
			lower &^= 0x08
		}
	}
	return lower
}

func (b *Bus) readJoypad() byte {
	return 0xC0 | b.joypSelect | b.joypadLower4()
}

func (b *Bus) updateJoypadIRQ() {
	lower := b.joypadLower4()
	if b.joypLower4&^lower != 0 {
		b.ifReg |= 1 << IRQJoypad
	}
	b.joypLower4 = lower
}
