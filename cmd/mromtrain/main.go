// mromtrain produces mrom.train.v1 telemetry: one training file per ROM,
// plus a batch manifest when run over a directory.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/EvezArt/metarom-go/internal/emu"
	"github.com/EvezArt/metarom-go/pkg/romfile"
)

func main() {
	app := cli.NewApp()
	app.Name = "mromtrain"
	app.Usage = "extract mrom.train.v1 telemetry from Game Boy ROMs"
	app.Commands = []cli.Command{
		{
			Name:      "rom",
			Usage:     "train on a single ROM (or the synthetic test ROM)",
			ArgsUsage: "[rom_path]",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "frames", Value: 60, Usage: "frames to capture"},
				cli.StringFlag{Name: "out", Value: "output.mrom.train.json", Usage: "output path"},
			},
			Action: trainOne,
		},
		{
			Name:      "batch",
			Usage:     "train on every ROM in a directory",
			ArgsUsage: "<roms_dir> <output_dir>",
			Flags: []cli.Flag{
				cli.Uint64Flag{Name: "frames", Value: 300, Usage: "frames per ROM"},
			},
			Action: trainBatch,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// play runs a machine for n frames, capturing one FrameRecord per frame.
func play(m *emu.Machine, n uint64) *emu.TrainingRecord {
	rec := m.NewTrainingRecord()
	rec.Frames = make([]emu.FrameRecord, 0, n)
	for frame := uint64(0); frame < n; frame++ {
		m.RunFrame()
		rec.Frames = append(rec.Frames, m.CaptureFrame(frame))
	}
	rec.TotalFrames = uint64(len(rec.Frames))
	rec.TotalCycles = m.TCycles()
	return rec
}

func trainOne(c *cli.Context) error {
	frames := c.Uint64("frames")
	outPath := c.String("out")

	var rom []byte
	if romPath := c.Args().First(); romPath != "" {
		b, err := romfile.Load(romPath)
		if err != nil {
			return err
		}
		rom = b
	} else {
		log.Print("no ROM given; running synthetic EVEZ-OS-TRAIN ROM")
		rom = emu.SyntheticROM("EVEZ-OS-TRAIN")
	}

	m, err := emu.NewFromROM(rom, emu.Config{})
	if err != nil {
		return err
	}
	log.Printf("ROM: %s | MBC: %s | %dKB | cgb=%t",
		m.Cart.Title, m.Cart.Kind, m.Cart.ROMSizeKB, m.Cart.IsCGB)

	rec := play(m, frames)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	log.Printf("training file written: %s (%d bytes)", outPath, len(data))
	return nil
}

type batchEntry struct {
	Title  string `json:"title"`
	Epoch  string `json:"epoch"`
	MBC    string `json:"mbc"`
	Frames uint64 `json:"frames"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Path   string `json:"path"`
}

type batchManifest struct {
	TotalROMs   int          `json:"total_roms"`
	OK          int          `json:"ok"`
	Failed      int          `json:"failed"`
	TotalFrames uint64       `json:"total_frames"`
	ROMs        []batchEntry `json:"roms"`
}

func trainBatch(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: mromtrain batch <roms_dir> <output_dir>")
	}
	romsDir, outDir := c.Args().Get(0), c.Args().Get(1)
	frames := c.Uint64("frames")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(romsDir)
	if err != nil {
		return err
	}
	var romFiles []string
	for _, e := range entries {
		if !e.IsDir() && romfile.IsROMName(e.Name()) {
			romFiles = append(romFiles, filepath.Join(romsDir, e.Name()))
		}
	}
	if len(romFiles) == 0 {
		log.Printf("no ROMs found in %s; run `mromtrain rom` for the synthetic ROM", romsDir)
		return nil
	}
	log.Printf("found %d ROM file(s)", len(romFiles))

	manifest := batchManifest{}
	for i, path := range romFiles {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outPath := filepath.Join(outDir, stem+".mrom.train.json")
		entry := batchEntry{Title: stem, Path: outPath}

		start := time.Now()
		err := func() error {
			rom, err := romfile.Load(path)
			if err != nil {
				return err
			}
			m, err := emu.NewFromROM(rom, emu.Config{})
			if err != nil {
				return err
			}
			rec := play(m, frames)
			entry.Title = rec.ROMTitle
			entry.Epoch = rec.Epoch
			entry.MBC = rec.MBCKind
			entry.Frames = rec.TotalFrames
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, data, 0o644)
		}()
		if err != nil {
			entry.Error = err.Error()
			manifest.Failed++
			log.Printf("[%d/%d] %s FAILED: %v", i+1, len(romFiles), filepath.Base(path), err)
		} else {
			entry.OK = true
			manifest.OK++
			manifest.TotalFrames += entry.Frames
			log.Printf("[%d/%d] %s OK (%d frames, %s)", i+1, len(romFiles),
				filepath.Base(path), entry.Frames, time.Since(start).Truncate(time.Millisecond))
		}
		manifest.ROMs = append(manifest.ROMs, entry)
	}
	manifest.TotalROMs = len(manifest.ROMs)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(outDir, "batch_manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return err
	}
	log.Printf("batch complete: %d ok, %d failed, manifest %s",
		manifest.OK, manifest.Failed, manifestPath)
	return nil
}
