package emu

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// HashFNV1a is the 32-bit FNV-1a digest used across the sidecar telemetry
// formats (seed 0x811C9DC5, prime 0x01000193, one byte at a time).
func HashFNV1a(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}

// Epoch classifies a cartridge for the trainer: CGB titles sort into the
// second console generation, DMG titles into the first.
func Epoch(isCGB bool) string {
	if isCGB {
		return "gen2_snes_genesis"
	}
	return "gen1_nes"
}

// FrameRecord is one frame's worth of training telemetry.
type FrameRecord struct {
	Frame   uint64 `json:"frame"`
	TCycles uint64 `json:"t_cycles"`

	PC     uint16 `json:"pc"`
	SP     uint16 `json:"sp"`
	A      byte   `json:"a"`
	F      byte   `json:"f"`
	BC     uint16 `json:"bc"`
	DE     uint16 `json:"de"`
	HL     uint16 `json:"hl"`
	Halted bool   `json:"halted"`
	IME    bool   `json:"ime"`

	LY      byte `json:"ly"`
	LCDC    byte `json:"lcdc"`
	PPUMode byte `json:"ppu_mode"`

	VBlankCount uint64 `json:"vblank_count"`

	Square1On bool `json:"sq1_on"`
	Square2On bool `json:"sq2_on"`
	WaveOn    bool `json:"wave_on"`
	NoiseOn   bool `json:"noise_on"`
	Samples   int  `json:"samples"`

	ROMBank uint16 `json:"rom_bank"`
	RAMBank byte   `json:"ram_bank"`

	WRAMHash uint32 `json:"wram_hash"`
	VRAMHash uint32 `json:"vram_hash"`
	OAMHash  uint32 `json:"oam_hash"`
}

// TrainingRecord is the per-ROM mrom.train.v1 document.
type TrainingRecord struct {
	Version     string        `json:"version"`
	ROMTitle    string        `json:"rom_title"`
	ROMHash     string        `json:"rom_hash"`
	MBCKind     string        `json:"mbc_kind"`
	Epoch       string        `json:"epoch"`
	TotalFrames uint64        `json:"total_frames"`
	TotalCycles uint64        `json:"total_cycles"`
	Frames      []FrameRecord `json:"frames"`
}

// TrainVersion tags the training-record schema.
const TrainVersion = "mrom.train.v1"

// CaptureFrame samples the machine into one FrameRecord. frame is the
// caller's frame index; the APU buffer is drained so the sample count covers
// exactly this frame.
func (m *Machine) CaptureFrame(frame uint64) FrameRecord {
	c := m.CPU
	p := m.b.PPU()
	a := m.b.APU()
	wram := make([]byte, 0, 8*0x1000)
	for bank := 0; bank < 8; bank++ {
		wram = append(wram, m.b.WRAM(bank)[:]...)
	}
	samples := a.Buffered()
	a.Drain(samples)
	return FrameRecord{
		Frame:   frame,
		TCycles: m.tCycles,
		PC:      c.PC, SP: c.SP, A: c.A, F: c.F,
		BC: c.BC(), DE: c.DE(), HL: c.HL(),
		Halted: c.Halted, IME: c.IME,
		LY: p.LY, LCDC: p.LCDC, PPUMode: byte(p.Mode),
		VBlankCount: m.vblanks,
		Square1On:   a.Square1On(),
		Square2On:   a.Square2On(),
		WaveOn:      a.WaveOn(),
		NoiseOn:     a.NoiseOn(),
		Samples:     samples,
		ROMBank:     m.b.MBC().ROMBank,
		RAMBank:     m.b.MBC().RAMBank,
		WRAMHash:    HashFNV1a(wram),
		VRAMHash:    HashFNV1a(m.b.VRAM(0)[:]),
		OAMHash:     HashFNV1a(m.b.OAM()[:]),
	}
}

// NewTrainingRecord builds the document header for this machine's cartridge.
func (m *Machine) NewTrainingRecord() *TrainingRecord {
	return &TrainingRecord{
		Version:  TrainVersion,
		ROMTitle: m.Cart.Title,
		ROMHash:  fmt.Sprintf("%08x", HashFNV1a(m.Cart.ROM)),
		MBCKind:  m.Cart.Kind.String(),
		Epoch:    Epoch(m.Cart.IsCGB),
	}
}

// SnapVersion tags the frame-snapshot schema.
const SnapVersion = "mrom.snap.v1"

// Snapshot is the mrom.snap.v1 frame broadcast document.
type Snapshot struct {
	Schema      string `json:"schema"`
	Frame       uint64 `json:"frame"`
	LY          byte   `json:"ly"`
	PPUMode     byte   `json:"ppu_mode"`
	PC          uint16 `json:"pc"`
	SP          uint16 `json:"sp"`
	A           byte   `json:"a"`
	F           byte   `json:"f"`
	DoubleSpeed bool   `json:"double_speed"`
	WRAMBank    byte   `json:"wram_bank"`
	VRAMBank    byte   `json:"vram_bank"`
	BGPalette   string `json:"bg_palette"`
	FrameRGB    string `json:"frame_rgb"`
}

// Snap captures the current frame as an mrom.snap.v1 document.
func (m *Machine) Snap() Snapshot {
	p := m.b.PPU()
	return Snapshot{
		Schema:      SnapVersion,
		Frame:       m.FrameCount(),
		LY:          p.LY,
		PPUMode:     byte(p.Mode),
		PC:          m.CPU.PC,
		SP:          m.CPU.SP,
		A:           m.CPU.A,
		F:           m.CPU.F,
		DoubleSpeed: m.b.DoubleSpeed(),
		WRAMBank:    m.b.WRAMBank(),
		VRAMBank:    m.b.VRAMBank(),
		BGPalette:   hex.EncodeToString(m.b.BGPaletteRAM()[:]),
		FrameRGB:    hex.EncodeToString(m.FramebufferRGB()),
	}
}

// SnapJSON renders the current frame snapshot as one JSON line.
func (m *Machine) SnapJSON() ([]byte, error) {
	return json.Marshal(m.Snap())
}
