package ppu

import "sort"

// sprite is one decoded OAM entry surviving the per-line scan.
type sprite struct {
	y, x  int
	tile  byte
	flags byte
	oamIx int
}

const maxSpritesPerLine = 10

// renderScanline draws BG, window and sprites for the current LY into the
// framebuffer. VRAM offsets are relative to 0x8000; OAM is the raw 160-byte
// table. bgIndex keeps the pre-palette BG/window color index per pixel so
// sprite priority can test BG opacity.
func (p *PPU) renderScanline(vram, oam []byte) {
	ly := int(p.LY)
	if ly >= Height {
		return
	}
	row := p.Framebuffer[ly*Width : (ly+1)*Width]
	var bgIndex [Width]byte

	if p.LCDC&0x01 != 0 {
		p.renderBG(vram, row, bgIndex[:])
		p.renderWindow(vram, row, bgIndex[:])
	} else {
		for x := range row {
			row[x] = 0
		}
	}
	if p.LCDC&0x02 != 0 {
		p.renderSprites(vram, oam, row, bgIndex[:])
	}
}

// tileRow fetches the two bitplane bytes for one row of a BG/window tile.
func (p *PPU) tileRow(vram []byte, tileIdx byte, fineY int) (lo, hi byte) {
	var base int
	if p.LCDC&0x10 != 0 {
		base = int(tileIdx)*16 + fineY*2
	} else {
		base = 0x1000 + int(int8(tileIdx))*16 + fineY*2
	}
	return vram[base], vram[base+1]
}

func (p *PPU) mapBase(bit byte) int {
	if p.LCDC&bit != 0 {
		return 0x1C00
	}
	return 0x1800
}

func (p *PPU) renderBG(vram, row, bgIndex []byte) {
	mapBase := p.mapBase(0x08)
	mapY := (int(p.LY) + int(p.SCY)) & 0xFF
	fineY := mapY & 7
	for x := 0; x < Width; x++ {
		mapX := (x + int(p.SCX)) & 0xFF
		tileIdx := vram[mapBase+(mapY/8)*32+mapX/8]
		lo, hi := p.tileRow(vram, tileIdx, fineY)
		bit := byte(7 - mapX&7)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		bgIndex[x] = ci
		row[x] = (p.BGP >> (ci * 2)) & 0x03
	}
}

func (p *PPU) renderWindow(vram, row, bgIndex []byte) {
	if p.LCDC&0x20 == 0 || p.LY < p.WY {
		return
	}
	startX := int(p.WX) - 7
	if startX >= Width {
		return
	}
	if startX < 0 {
		startX = 0
	}
	mapBase := p.mapBase(0x40)
	winY := int(p.winLine)
	fineY := winY & 7
	for x := startX; x < Width; x++ {
		winX := x - (int(p.WX) - 7)
		tileIdx := vram[mapBase+(winY/8)*32+winX/8]
		lo, hi := p.tileRow(vram, tileIdx, fineY)
		bit := byte(7 - winX&7)
		ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
		bgIndex[x] = ci
		row[x] = (p.BGP >> (ci * 2)) & 0x03
	}
	p.winLine++
}

func (p *PPU) renderSprites(vram, oam, row, bgIndex []byte) {
	height := 8
	if p.LCDC&0x04 != 0 {
		height = 16
	}
	ly := int(p.LY)

	var line []sprite
	for i := 0; i+3 < len(oam) && len(line) < maxSpritesPerLine; i += 4 {
		sy := int(oam[i]) - 16
		if ly < sy || ly >= sy+height {
			continue
		}
		line = append(line, sprite{
			y: sy, x: int(oam[i+1]) - 8,
			tile: oam[i+2], flags: oam[i+3],
			oamIx: i,
		})
	}
	// Lower X wins; OAM order breaks ties. Drawing back-to-front lets the
	// winner overwrite.
	sort.SliceStable(line, func(a, b int) bool { return line[a].x < line[b].x })
	for i := len(line) - 1; i >= 0; i-- {
		s := line[i]
		rowInTile := ly - s.y
		if s.flags&0x40 != 0 { // Y flip
			rowInTile = height - 1 - rowInTile
		}
		tile := s.tile
		if height == 16 {
			tile &= 0xFE
		}
		base := int(tile)*16 + rowInTile*2
		lo, hi := vram[base], vram[base+1]
		pal := p.OBP0
		if s.flags&0x10 != 0 {
			pal = p.OBP1
		}
		for px := 0; px < 8; px++ {
			x := s.x + px
			if x < 0 || x >= Width {
				continue
			}
			bit := byte(7 - px)
			if s.flags&0x20 != 0 { // X flip
				bit = byte(px)
			}
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue // transparent
			}
			if s.flags&0x80 != 0 && bgIndex[x] != 0 {
				continue // behind opaque BG
			}
			row[x] = (pal >> (ci * 2)) & 0x03
		}
	}
}
