package cart

import "fmt"

// InvalidROMError reports a ROM image that cannot be loaded: too short to
// carry a header, or header-derived sizes that make no sense. It is also
// reused for malformed save-state input, which reaches the host through the
// same construction-time error channel.
type InvalidROMError struct {
	Reason string
}

func (e *InvalidROMError) Error() string { return fmt.Sprintf("invalid ROM: %s", e.Reason) }

// Cartridge is the parsed ROM image plus its backing RAM. It is consumed by
// bus construction; afterwards the bus owns both byte slices.
type Cartridge struct {
	ROM []byte
	RAM []byte

	Kind      Kind
	Title     string
	IsCGB     bool
	ROMSizeKB int
	RAMSizeKB int
}

// FromBytes parses a raw cartridge image. The backing RAM is allocated
// zeroed at the size the header declares. No checksum verification.
func FromBytes(rom []byte) (*Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	ram := make([]byte, h.RAMSizeKB*1024)
	if h.Kind == MBC2 && len(ram) == 0 {
		// MBC2 carries 512 nibbles of internal RAM not declared in the header.
		ram = make([]byte, 512)
	}
	return &Cartridge{
		ROM:       rom,
		RAM:       ram,
		Kind:      h.Kind,
		Title:     h.Title,
		IsCGB:     h.IsCGB,
		ROMSizeKB: h.ROMSizeKB,
		RAMSizeKB: h.RAMSizeKB,
	}, nil
}
