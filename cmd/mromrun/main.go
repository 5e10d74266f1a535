// mromrun is the headless letsplay runner: it plays a ROM (or the built-in
// synthetic test ROM) for N frames and prints ASCII frames plus a state
// summary, with optional save-state output.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/EvezArt/metarom-go/internal/cart"
	"github.com/EvezArt/metarom-go/internal/emu"
	"github.com/EvezArt/metarom-go/pkg/romfile"
)

func main() {
	romPath := flag.String("rom", "", "path to ROM; empty runs the synthetic test ROM")
	frames := flag.Int("frames", 10, "frames to run")
	asciiEvery := flag.Int("ascii", 3, "print ASCII frames for the first N frames and the last")
	statePath := flag.String("state", "", "write a save state here after the run")
	flag.Parse()

	var rom []byte
	if *romPath != "" {
		b, err := romfile.Load(*romPath)
		if err != nil {
			log.Fatalf("read rom: %v", err)
		}
		rom = b
	} else {
		rom = emu.SyntheticROM("METAROM-TEST")
	}

	c, err := cart.FromBytes(rom)
	if err != nil {
		log.Fatalf("invalid ROM: %v", err)
	}
	fmt.Printf("MetaROM LetsPlay Runner | target_frames=%d\n", *frames)
	fmt.Printf("Resolution: 160x144 | CyclesPerFrame: %d\n\n", emu.CyclesPerFrame)
	fmt.Printf("ROM: %s | MBC: %s | %dKB ROM | %dKB RAM\n\n",
		c.Title, c.Kind, c.ROMSizeKB, c.RAMSizeKB)

	m := emu.New(c, emu.Config{})
	start := time.Now()
	for frame := 0; frame < *frames; frame++ {
		m.RunFrame()
		if frame < *asciiEvery || frame == *frames-1 {
			fmt.Printf("--- Frame %d ---\n", frame)
			fmt.Println(m.StateSummary())
			rows := strings.Split(m.FrameToASCII(), "\n")
			for i := 0; i < 8 && i < len(rows); i++ {
				row := rows[i]
				if len(row) > 40 {
					row = row[:40]
				}
				fmt.Printf("  [%d] %s\n", i, row)
			}
			if frame < *frames-1 {
				fmt.Println("  ...")
			}
			fmt.Println()
		}
	}
	elapsed := time.Since(start)

	fmt.Println("=== LETSPLAY COMPLETE ===")
	fmt.Printf("Frames: %d | T-cycles: %d | VBlanks: %d | LY: %d | Mode: %s | elapsed=%s\n\n",
		*frames, m.TCycles(), m.VBlankCount(), m.Bus().PPU().LY, m.Bus().PPU().Mode,
		elapsed.Truncate(time.Millisecond))
	fmt.Println("Final frame:")
	fmt.Print(m.FrameToASCII())

	if *statePath != "" {
		data, err := m.SaveState()
		if err == nil {
			err = os.WriteFile(*statePath, data, 0o644)
		}
		if err != nil {
			log.Fatalf("save state: %v", err)
		}
		log.Printf("state written: %s (%d bytes)", *statePath, len(data))
	}
}
