package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
)

// STY format errors.
var (
	ErrMissingTiles        = errors.New("style has no TILE chunk")
	ErrMissingPaletteIndex = errors.New("style has no PALX chunk")
	ErrPaletteIndexShort   = errors.New("palette index has fewer entries than tiles")
	ErrPaletteOutOfRange   = errors.New("palette index refers to a missing physical palette")
	ErrTileOutOfRange      = errors.New("tile id out of range")
	ErrPixelOutOfRange     = errors.New("pixel out of range")
)

// Page and tile geometry.
const (
	PageSize          = 256
	pageBytes         = PageSize * PageSize
	TileSize          = 64
	TilesPerPage      = 16
	tilesPerRow       = PageSize / TileSize
	PalettesPerPage   = 64
	PaletteColors     = 1024
	paletteBaseFields = 8
)

// Style chunk tags.
const (
	chunkPaletteIndex     = "PALX"
	chunkPhysicalPalettes = "PPAL"
	chunkPaletteBase      = "PALB"
	chunkTiles            = "TILE"
)

// styleSkippedChunks are present in real files but not decoded.
var styleSkippedChunks = []string{
	"SPRG", "SPRX", "SPRB", "DELS", "DELX", "FONB", "CARI", "OBJI", "PSXT", "RECY",
}

// Tile is a 64x64 image of palette indices, stored row-major.
type Tile [TileSize * TileSize]uint8

// At returns the palette index of pixel (x, y).
// x and y must lie in [0, TileSize).
func (t *Tile) At(x, y int) uint8 {
	return t[y*TileSize+x]
}

// PaletteBase holds the first palette used by each palette category.
type PaletteBase struct {
	Tile         uint16
	Sprite       uint16
	CarRemap     uint16
	PedRemap     uint16
	CodeObjRemap uint16
	MapObjRemap  uint16
	UserRemap    uint16
	FontRemap    uint16
}

// PhysicalPalette is a table of packed colors. Each value holds the four
// bytes B, G, R, A in little-endian order.
type PhysicalPalette struct {
	Colors []uint32
}

// Style represents a parsed style file.
type Style struct {
	Header           FileHeader
	Tiles            []Tile
	PaletteIndex     []uint16 // physical palette per tile id
	PaletteBase      PaletteBase
	PhysicalPalettes []PhysicalPalette

	// HasPaletteBase is false when the file carried no PALB chunk.
	HasPaletteBase bool
	Termination    Termination
}

// styleChunks accumulates optional chunks until the stream ends.
type styleChunks struct {
	tiles            []Tile
	paletteIndex     []uint16
	paletteBase      *PaletteBase
	physicalPalettes []PhysicalPalette
}

func (c *styleChunks) table() ChunkTable {
	t := ChunkTable{
		chunkTiles: func(r *bytes.Reader, size uint32) error {
			tiles, err := parseTiles(r, size)
			c.tiles = tiles
			return err
		},
		chunkPhysicalPalettes: func(r *bytes.Reader, size uint32) error {
			palettes, err := parsePhysicalPalettes(r, size)
			c.physicalPalettes = palettes
			return err
		},
		chunkPaletteBase: func(r *bytes.Reader, size uint32) error {
			base, err := parsePaletteBase(r)
			c.paletteBase = base
			return err
		},
		chunkPaletteIndex: func(r *bytes.Reader, size uint32) error {
			index, err := parsePaletteIndex(r, size)
			c.paletteIndex = index
			return err
		},
	}
	for _, tag := range styleSkippedChunks {
		t[tag] = nil
	}
	return t
}

// build checks required chunks and assembles the Style.
func (c *styleChunks) build(header FileHeader, term Termination) (*Style, error) {
	if c.tiles == nil {
		return nil, ErrMissingTiles
	}
	if c.paletteIndex == nil {
		return nil, ErrMissingPaletteIndex
	}
	if len(c.paletteIndex) < len(c.tiles) {
		return nil, fmt.Errorf("%w: %d entries, %d tiles", ErrPaletteIndexShort, len(c.paletteIndex), len(c.tiles))
	}
	if c.physicalPalettes != nil {
		for id := range c.tiles {
			if int(c.paletteIndex[id]) >= len(c.physicalPalettes) {
				return nil, fmt.Errorf("%w: tile %d uses palette %d of %d",
					ErrPaletteOutOfRange, id, c.paletteIndex[id], len(c.physicalPalettes))
			}
		}
	}

	style := &Style{
		Header:           header,
		Tiles:            c.tiles,
		PaletteIndex:     c.paletteIndex,
		PhysicalPalettes: c.physicalPalettes,
		Termination:      term,
	}
	if c.paletteBase != nil {
		style.PaletteBase = *c.paletteBase
		style.HasPaletteBase = true
	}
	return style, nil
}

// ParseSTY parses a style file from raw bytes.
func ParseSTY(data []byte, opts ...Option) (*Style, error) {
	o := newOptions(opts)
	r := bytes.NewReader(data)

	header, err := readHeader(r, StyleMagic, o)
	if err != nil {
		return nil, err
	}

	var chunks styleChunks
	term, err := readChunks(r, chunks.table(), o)
	if err != nil {
		return nil, err
	}

	return chunks.build(header, term)
}

// ParseSTYFile parses a style file from disk.
func ParseSTYFile(path string, opts ...Option) (*Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading STY file: %w", err)
	}
	return ParseSTY(data, opts...)
}

// parseTiles cuts every page into a 4x4 grid of tiles.
func parseTiles(r *bytes.Reader, size uint32) ([]Tile, error) {
	pages, err := readPages(r, size)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, 0, len(pages)*TilesPerPage)
	for _, page := range pages {
		for id := 0; id < TilesPerPage; id++ {
			tiles = append(tiles, tileFromPage(id, page))
		}
	}
	return tiles, nil
}

// tileFromPage extracts tile id from a page. Tile pixel (x, y) is page
// pixel (x + 64*(id%4), y + 64*(id/4)).
func tileFromPage(id int, page []byte) Tile {
	var tile Tile
	xStart := (id % tilesPerRow) * TileSize
	yStart := (id / tilesPerRow) * TileSize
	for y := 0; y < TileSize; y++ {
		row := (yStart+y)*PageSize + xStart
		copy(tile[y*TileSize:(y+1)*TileSize], page[row:row+TileSize])
	}
	return tile
}

// parsePhysicalPalettes reads 64 palettes per page, one per 4-byte column.
func parsePhysicalPalettes(r *bytes.Reader, size uint32) ([]PhysicalPalette, error) {
	pages, err := readPages(r, size)
	if err != nil {
		return nil, err
	}

	palettes := make([]PhysicalPalette, 0, len(pages)*PalettesPerPage)
	for _, page := range pages {
		for id := 0; id < PalettesPerPage; id++ {
			palettes = append(palettes, paletteFromPage(id, page))
		}
	}
	return palettes, nil
}

// paletteFromPage reads PaletteColors rows of palette id. The page only has
// 256 rows, so row y is read from page row y%256.
func paletteFromPage(id int, page []byte) PhysicalPalette {
	colors := make([]uint32, PaletteColors)
	for y := range colors {
		offset := (y%PageSize)*PageSize + id*4
		colors[y] = binary.LittleEndian.Uint32(page[offset:])
	}
	return PhysicalPalette{Colors: colors}
}

func parsePaletteBase(r *bytes.Reader) (*PaletteBase, error) {
	var fields [paletteBaseFields]uint16
	if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("%w: reading palette base", ErrTruncatedData)
	}
	return &PaletteBase{
		Tile:         fields[0],
		Sprite:       fields[1],
		CarRemap:     fields[2],
		PedRemap:     fields[3],
		CodeObjRemap: fields[4],
		MapObjRemap:  fields[5],
		UserRemap:    fields[6],
		FontRemap:    fields[7],
	}, nil
}

func parsePaletteIndex(r *bytes.Reader, size uint32) ([]uint16, error) {
	index := make([]uint16, size/2)
	if err := binary.Read(r, binary.LittleEndian, index); err != nil {
		return nil, fmt.Errorf("%w: reading %d palette index entries", ErrTruncatedData, len(index))
	}
	return index, nil
}

// TilePalette returns the physical palette used by tile id.
func (s *Style) TilePalette(id int) (*PhysicalPalette, error) {
	if id < 0 || id >= len(s.Tiles) {
		return nil, fmt.Errorf("%w: %d", ErrTileOutOfRange, id)
	}
	p := int(s.PaletteIndex[id])
	if p >= len(s.PhysicalPalettes) {
		return nil, fmt.Errorf("%w: tile %d uses palette %d of %d", ErrPaletteOutOfRange, id, p, len(s.PhysicalPalettes))
	}
	return &s.PhysicalPalettes[p], nil
}

// TileColor returns the packed color of pixel (x, y) in tile id.
func (s *Style) TileColor(id, x, y int) (uint32, error) {
	palette, err := s.TilePalette(id)
	if err != nil {
		return 0, err
	}
	if x < 0 || y < 0 || x >= TileSize || y >= TileSize {
		return 0, fmt.Errorf("%w: (%d,%d) in tile %d", ErrPixelOutOfRange, x, y, id)
	}
	return palette.Colors[s.Tiles[id].At(x, y)], nil
}

// TileImage resolves tile id against its palette. A pixel whose resolved
// color is 0x00000000 is transparent; every other pixel is opaque.
func (s *Style) TileImage(id int) (*image.RGBA, error) {
	palette, err := s.TilePalette(id)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	tile := &s.Tiles[id]
	for y := 0; y < TileSize; y++ {
		for x := 0; x < TileSize; x++ {
			c := palette.Colors[tile.At(x, y)]
			if c == 0 {
				continue
			}
			img.SetRGBA(x, y, unpackColor(c))
		}
	}
	return img, nil
}

// unpackColor converts a packed BGRA value to an opaque color.
func unpackColor(c uint32) color.RGBA {
	return color.RGBA{
		R: uint8(c >> 16),
		G: uint8(c >> 8),
		B: uint8(c),
		A: 255,
	}
}
