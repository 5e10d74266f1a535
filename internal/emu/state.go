package emu

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/EvezArt/metarom-go/internal/cart"
)

// UnimplementedError is reserved for MBC variants or CGB features the core
// does not model yet. Step never raises it.
type UnimplementedError struct {
	Reason string
}

func (e *UnimplementedError) Error() string { return fmt.Sprintf("unimplemented: %s", e.Reason) }

// StateVersion tags the save-state schema.
const StateVersion = "mrom.sav.v1"

type savedRegs struct {
	A      byte   `json:"a"`
	F      byte   `json:"f"`
	B      byte   `json:"b"`
	C      byte   `json:"c"`
	D      byte   `json:"d"`
	E      byte   `json:"e"`
	H      byte   `json:"h"`
	L      byte   `json:"l"`
	SP     uint16 `json:"sp"`
	PC     uint16 `json:"pc"`
	IME    bool   `json:"ime"`
	Halted bool   `json:"halted"`
}

type savedMBC struct {
	ROMBank   uint16 `json:"rom_bank"`
	RAMBank   byte   `json:"ram_bank"`
	RAMEnable bool   `json:"ram_enable"`
	Mode      byte   `json:"mode"`
}

type savedState struct {
	Version     string    `json:"version"`
	TCycles     uint64    `json:"t_cycles"`
	Regs        savedRegs `json:"regs"`
	MBC         savedMBC  `json:"mbc"`
	VRAMBank    byte      `json:"vram_bank"`
	WRAMBank    byte      `json:"wram_bank"`
	DoubleSpeed bool      `json:"double_speed"`
	WRAM        string    `json:"wram"` // 8 banks concatenated, hex
	HRAM        string    `json:"hram"`
	OAM         string    `json:"oam"`
	VRAM0       string    `json:"vram0"`
	VRAM1       string    `json:"vram1"`
}

// SaveState serializes the machine into a version-tagged mrom.sav.v1 record.
func (m *Machine) SaveState() ([]byte, error) {
	c := m.CPU
	mb := m.b.MBC()
	wram := make([]byte, 0, 8*0x1000)
	for bank := 0; bank < 8; bank++ {
		wram = append(wram, m.b.WRAM(bank)[:]...)
	}
	s := savedState{
		Version: StateVersion,
		TCycles: m.tCycles,
		Regs: savedRegs{
			A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
			SP: c.SP, PC: c.PC, IME: c.IME, Halted: c.Halted,
		},
		MBC: savedMBC{
			ROMBank: mb.ROMBank, RAMBank: mb.RAMBank,
			RAMEnable: mb.RAMEnable, Mode: mb.Mode,
		},
		VRAMBank:    m.b.VRAMBank(),
		WRAMBank:    m.b.WRAMBank(),
		DoubleSpeed: m.b.DoubleSpeed(),
		WRAM:        hex.EncodeToString(wram),
		HRAM:        hex.EncodeToString(m.b.HRAM()[:]),
		OAM:         hex.EncodeToString(m.b.OAM()[:]),
		VRAM0:       hex.EncodeToString(m.b.VRAM(0)[:]),
		VRAM1:       hex.EncodeToString(m.b.VRAM(1)[:]),
	}
	return json.MarshalIndent(s, "", "  ")
}

// LoadState restores a machine from a mrom.sav.v1 record. Unknown keys are
// ignored; malformed input is reported as an invalid-ROM error carrying the
// parse message.
func (m *Machine) LoadState(data []byte) error {
	var s savedState
	if err := json.Unmarshal(data, &s); err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state parse: %v", err)}
	}
	if s.Version != StateVersion {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state version %q", s.Version)}
	}
	wram, err := hex.DecodeString(s.WRAM)
	if err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state wram: %v", err)}
	}
	hram, err := hex.DecodeString(s.HRAM)
	if err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state hram: %v", err)}
	}
	oam, err := hex.DecodeString(s.OAM)
	if err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state oam: %v", err)}
	}
	vram0, err := hex.DecodeString(s.VRAM0)
	if err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state vram0: %v", err)}
	}
	vram1, err := hex.DecodeString(s.VRAM1)
	if err != nil {
		return &cart.InvalidROMError{Reason: fmt.Sprintf("state vram1: %v", err)}
	}

	m.tCycles = s.TCycles
	c := m.CPU
	c.A, c.F = s.Regs.A, s.Regs.F&0xF0
	c.B, c.C = s.Regs.B, s.Regs.C
	c.D, c.E = s.Regs.D, s.Regs.E
	c.H, c.L = s.Regs.H, s.Regs.L
	c.SP, c.PC = s.Regs.SP, s.Regs.PC
	c.IME, c.Halted = s.Regs.IME, s.Regs.Halted
	c.SetIMEPending(false)

	mb := m.b.MBC()
	mb.ROMBank = s.MBC.ROMBank
	mb.RAMBank = s.MBC.RAMBank
	mb.RAMEnable = s.MBC.RAMEnable
	mb.Mode = s.MBC.Mode

	m.b.SetVRAMBank(s.VRAMBank)
	m.b.SetWRAMBank(s.WRAMBank)
	m.b.SetDoubleSpeed(s.DoubleSpeed)

	for bank := 0; bank < 8; bank++ {
		dst := m.b.WRAM(bank)
		lo := bank * 0x1000
		if lo+0x1000 <= len(wram) {
			copy(dst[:], wram[lo:lo+0x1000])
		}
	}
	copy(m.b.HRAM()[:], hram)
	copy(m.b.OAM()[:], oam)
	copy(m.b.VRAM(0)[:], vram0)
	copy(m.b.VRAM(1)[:], vram1)
	return nil
}
