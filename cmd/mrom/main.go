package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/EvezArt/metarom-go/internal/cart"
	"github.com/EvezArt/metarom-go/internal/emu"
	"github.com/EvezArt/metarom-go/internal/ui"
	"github.com/EvezArt/metarom-go/pkg/romfile"
)

type CLIFlags struct {
	ROMPath string
	Scale   int
	Title   string
	SaveRAM bool

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb/.gbc, optionally zipped)")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "mrom", "window title")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	for i := 0; i < frames; i++ {
		m.RunFrame()
	}
	rgb := m.FramebufferRGB()
	crc := crc32.ChecksumIEEE(rgb)
	log.Printf("headless: frames=%d t_cycles=%d fb_crc32=%08x", frames, m.TCycles(), crc)

	if pngPath != "" {
		if err := saveFramePNG(rgb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(rgb []byte, w, h int, path string) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[i*4] = rgb[i*3]
		img.Pix[i*4+1] = rgb[i*3+1]
		img.Pix[i*4+2] = rgb[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func savPath(romPath string) string {
	for _, ext := range []string{".gb", ".gbc", ".zip", ".gz", ".7z"} {
		if strings.HasSuffix(strings.ToLower(romPath), ext) {
			return romPath[:len(romPath)-len(ext)] + ".sav"
		}
	}
	return romPath + ".sav"
}

func main() {
	f := parseFlags()
	if f.ROMPath == "" && !f.Headless {
		p, err := ui.PickROM("")
		if err != nil {
			log.Fatalf("no ROM selected: %v", err)
		}
		f.ROMPath = p
	}

	var rom []byte
	if f.ROMPath != "" {
		b, err := romfile.Load(f.ROMPath)
		if err != nil {
			log.Fatalf("read rom: %v", err)
		}
		rom = b
	} else {
		rom = emu.SyntheticROM("MROM-SMOKE")
	}

	if h, err := cart.ParseHeader(rom); err == nil {
		log.Printf("ROM: %q mbc=%s rom=%dKB ram=%dKB cgb=%t",
			h.Title, h.Kind, h.ROMSizeKB, h.RAMSizeKB, h.IsCGB)
	}

	m, err := emu.NewFromROM(rom, emu.Config{})
	if err != nil {
		log.Fatalf("load cart: %v", err)
	}
	if f.ROMPath != "" {
		if abs, err := filepath.Abs(f.ROMPath); err == nil {
			m.SetROMPath(abs)
		} else {
			m.SetROMPath(f.ROMPath)
		}
	}

	var sav string
	if f.SaveRAM && f.ROMPath != "" {
		sav = savPath(f.ROMPath)
		if data, err := os.ReadFile(sav); err == nil {
			if m.LoadBattery(data) {
				log.Printf("loaded save RAM: %s (%d bytes)", sav, len(data))
			}
		}
	}

	writeBattery := func() {
		if !f.SaveRAM || sav == "" {
			return
		}
		if data, ok := m.SaveBattery(); ok {
			if err := os.WriteFile(sav, data, 0o644); err == nil {
				log.Printf("wrote %s", sav)
			}
		}
	}

	if f.Headless {
		if err := runHeadless(m, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		writeBattery()
		return
	}

	app := ui.NewApp(ui.Config{Title: f.Title, Scale: f.Scale}, m)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
	writeBattery()
}
