package emu

import (
	"fmt"
	"strings"

	"github.com/EvezArt/metarom-go/internal/bus"
	"github.com/EvezArt/metarom-go/internal/cart"
	"github.com/EvezArt/metarom-go/internal/cpu"
	"github.com/EvezArt/metarom-go/internal/ppu"
)

// Hardware constants.
const (
	CPUHz          = 4194304
	Scanlines      = 154
	DotsPerLine    = 456
	CyclesPerFrame = Scanlines * DotsPerLine // 70224
)

// Config carries machine construction options.
type Config struct {
	// SampleRate is the APU mixing rate in Hz; 0 selects 48000.
	SampleRate int
}

// Machine couples the CPU to the bus and fans cycles out to the subsystems.
// One Step is one instruction or one interrupt dispatch; RunFrame loops Step
// until a frame's worth of T-cycles has elapsed.
type Machine struct {
	Cart *cart.Cartridge
	CPU  *cpu.CPU

	b *bus.Bus

	tCycles uint64
	vblanks uint64

	romPath string
}

// New builds a machine around a parsed cartridge, seeding the CPU with the
// post-boot register file and the IO space with post-boot defaults.
func New(c *cart.Cartridge, cfg Config) *Machine {
	b := bus.New(c, cfg.SampleRate)
	m := &Machine{
		Cart: c,
		CPU:  cpu.New(b),
		b:    b,
	}
	// Post-boot IO defaults: LCD on with BG enabled, DMG palettes, timers off.
	b.Write(0xFF40, 0x91)
	b.Write(0xFF47, 0xFC)
	b.Write(0xFF48, 0xFF)
	b.Write(0xFF49, 0xFF)
	b.Write(0xFF00, 0x30)
	return m
}

// NewFromROM parses a raw image and builds a machine.
func NewFromROM(rom []byte, cfg Config) (*Machine, error) {
	c, err := cart.FromBytes(rom)
	if err != nil {
		return nil, err
	}
	return New(c, cfg), nil
}

// Bus exposes the machine's bus for tools and tests.
func (m *Machine) Bus() *bus.Bus { return m.b }

// TCycles returns the machine's monotonically increasing T-cycle counter.
func (m *Machine) TCycles() uint64 { return m.tCycles }

// FrameCount returns the number of completed frames by cycle count.
func (m *Machine) FrameCount() uint64 { return m.tCycles / CyclesPerFrame }

// VBlankCount returns the number of VBlank entries observed.
func (m *Machine) VBlankCount() uint64 { return m.vblanks }

// ROMPath reports where the ROM was loaded from, when known.
func (m *Machine) ROMPath() string { return m.romPath }

// SetROMPath records the ROM's origin for save placement.
func (m *Machine) SetROMPath(p string) { m.romPath = p }

// Step advances exactly one instruction or one interrupt dispatch, runs the
// subsystems for the same cycle count, and returns the T-cycles consumed.
func (m *Machine) Step() int {
	cycles := m.CPU.Step()
	m.b.StepSubsystems(cycles)
	m.tCycles += uint64(cycles)
	if m.b.PPU().FrameReady {
		m.vblanks++
	}
	return cycles
}

// RunFrame steps until the cycle counter has advanced by at least one frame
// relative to the entry value. It may overshoot by at most the final
// instruction's cost.
func (m *Machine) RunFrame() {
	target := m.tCycles + CyclesPerFrame
	for m.tCycles < target {
		m.Step()
	}
}

// SetButtons records the pressed-button mask (bus.Joyp* bits).
func (m *Machine) SetButtons(mask byte) { m.b.SetJoypadState(mask) }

// dmgShades maps a palette-mapped framebuffer value to greyscale.
var dmgShades = [4]byte{255, 170, 85, 0}

// Framebuffer returns the raw 160×144 indexed framebuffer.
func (m *Machine) Framebuffer() []byte {
	return m.b.PPU().Framebuffer[:]
}

// FramebufferRGB renders the framebuffer as 160×144×3 bytes. DMG output uses
// the fixed four-shade greyscale; CGB output routes indices through BG
// palette RAM, widening RGB555 to RGB888.
func (m *Machine) FramebufferRGB() []byte {
	fb := m.b.PPU().Framebuffer[:]
	out := make([]byte, len(fb)*3)
	if !m.b.CGB() {
		for i, ci := range fb {
			s := dmgShades[ci&3]
			out[i*3], out[i*3+1], out[i*3+2] = s, s, s
		}
		return out
	}
	pal := m.b.BGPaletteRAM()
	for i, ci := range fb {
		lo := pal[(ci&3)*2]
		hi := pal[(ci&3)*2+1]
		c := uint16(lo) | uint16(hi)<<8
		out[i*3] = byte(c&0x1F) << 3
		out[i*3+1] = byte(c>>5&0x1F) << 3
		out[i*3+2] = byte(c>>10&0x1F) << 3
	}
	return out
}

var asciiShades = [4]byte{'.', '+', '#', '@'}

// FrameToASCII compresses the framebuffer to 80×72 characters for human
// inspection, sampling every second pixel on both axes.
func (m *Machine) FrameToASCII() string {
	fb := m.b.PPU().Framebuffer[:]
	var sb strings.Builder
	sb.Grow((ppu.Width/2 + 1) * (ppu.Height / 2))
	for y := 0; y < ppu.Height; y += 2 {
		for x := 0; x < ppu.Width; x += 2 {
			sb.WriteByte(asciiShades[fb[y*ppu.Width+x]&3])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// StateSummary formats a one-line machine digest for runner logs.
func (m *Machine) StateSummary() string {
	p := m.b.PPU()
	return fmt.Sprintf(
		"PC=%#06x SP=%#06x A=%#04x BC=%#06x DE=%#06x HL=%#06x | Frame=%d LY=%d Mode=%s | T=%d",
		m.CPU.PC, m.CPU.SP, m.CPU.A,
		m.CPU.BC(), m.CPU.DE(), m.CPU.HL(),
		m.FrameCount(), p.LY, p.Mode, m.tCycles,
	)
}

// APUBuffered returns the number of stereo frames waiting in the APU ring.
func (m *Machine) APUBuffered() int { return m.b.APU().Buffered() }

// APUPull drains up to max stereo frames as interleaved L,R samples.
func (m *Machine) APUPull(max int) []int16 { return m.b.APU().Drain(max) }

// SaveBattery returns a copy of the cartridge RAM for .sav persistence.
func (m *Machine) SaveBattery() ([]byte, bool) {
	ram := m.b.CartRAM()
	if len(ram) == 0 {
		return nil, false
	}
	out := make([]byte, len(ram))
	copy(out, ram)
	return out, true
}

// LoadBattery restores previously saved cartridge RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	ram := m.b.CartRAM()
	if len(ram) == 0 || len(data) == 0 {
		return false
	}
	copy(ram, data)
	return true
}
