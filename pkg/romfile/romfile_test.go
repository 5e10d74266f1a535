package romfile

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func TestIsROMName(t *testing.T) {
	for name, want := range map[string]bool{
		"game.gb": true, "GAME.GBC": true, "x.rom": true,
		"notes.txt": false, "game.gb.sav": false,
	} {
		if got := IsROMName(name); got != want {
			t.Fatalf("IsROMName(%q) got %t want %t", name, got, want)
		}
	}
}

func TestLoadPlain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gb")
	payload := []byte{0x01, 0x02, 0x03}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestLoadZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.zip")
	payload := bytes.Repeat([]byte{0xAB}, 512)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if w, err := zw.Create("readme.txt"); err == nil {
		w.Write([]byte("not a rom"))
	}
	w, err := zw.Create("game.gb")
	if err != nil {
		t.Fatal(err)
	}
	w.Write(payload)
	zw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("zip payload mismatch: %d bytes", len(got))
	}
}

func TestLoadZipWithoutROM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.zip")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if w, err := zw.Create("readme.txt"); err == nil {
		w.Write([]byte("nothing here"))
	}
	zw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("zip without a ROM entry must error")
	}
}

func TestLoadGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.gb.gz")
	payload := bytes.Repeat([]byte{0xCD}, 256)

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(payload)
	gw.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("gzip payload mismatch")
	}
}
