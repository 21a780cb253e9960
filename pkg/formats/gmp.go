package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// GMP format errors.
var (
	ErrMissingCompressedMap = errors.New("map has neither a DMAP nor a UMAP chunk")
	ErrCorruptMap           = errors.New("corrupt compressed map")
)

// Map dimensions.
const (
	MapWidth  = 256
	MapHeight = 256
	MapDepth  = 8

	baseEntries = MapWidth * MapHeight
	mapCells    = MapWidth * MapHeight * MapDepth
)

// Map chunk tags.
const (
	chunkUncompressedMap = "UMAP"
	chunkCompressedMap32 = "DMAP"
)

// mapSkippedChunks are present in real files but not decoded.
var mapSkippedChunks = []string{
	"CMAP", "ZONE", "MOBJ", "PSXM", "ANIM", "LGHT", "RGEN",
}

// CompressedMap32 is the column-compressed map stored in a DMAP chunk.
type CompressedMap32 struct {
	Base        []uint32 // column index per (x, y), row-major
	ColumnInfos []uint32
	BlockInfos  []BlockInfo // BlockInfos[0] is the empty block
}

// UncompressedMap is the dense 256x256x8 block volume.
type UncompressedMap []BlockInfo

// Index returns the position of cell (x, y, z) in an UncompressedMap.
func Index(x, y, z int) int {
	return x + y*MapWidth + z*MapWidth*MapHeight
}

// At returns the block at (x, y, z), or nil if out of bounds.
func (m UncompressedMap) At(x, y, z int) *BlockInfo {
	if x < 0 || y < 0 || z < 0 || x >= MapWidth || y >= MapHeight || z >= MapDepth {
		return nil
	}
	i := Index(x, y, z)
	if i >= len(m) {
		return nil
	}
	return &m[i]
}

// Map represents a parsed map file.
type Map struct {
	Header FileHeader

	// Compressed is nil when the map was loaded from a UMAP chunk.
	Compressed  *CompressedMap32
	Blocks      UncompressedMap
	Termination Termination
}

// ColumnHeight returns the number of stored levels of column (x, y).
// Maps loaded from UMAP always report MapDepth.
func (m *Map) ColumnHeight(x, y int) int {
	if x < 0 || y < 0 || x >= MapWidth || y >= MapHeight {
		return 0
	}
	if m.Compressed == nil {
		return MapDepth
	}
	col := m.Compressed.Base[y*MapWidth+x]
	if int(col) >= len(m.Compressed.ColumnInfos) {
		return 0
	}
	return int(m.Compressed.ColumnInfos[col] & 0xFF)
}

// columnHeader splits a column info word into height and offset.
func columnHeader(info uint32) (height, offset int) {
	return int(info & 0xFF), int((info >> 8) & 0xFF)
}

// Expand decompresses c into a dense map. Every cell starts as
// c.BlockInfos[0]; for each column, level z in [offset, height) takes the
// block referenced by column slot z-offset+1. Out-of-range references
// return ErrCorruptMap.
func Expand(c *CompressedMap32) (UncompressedMap, error) {
	if len(c.BlockInfos) == 0 {
		return nil, fmt.Errorf("%w: no block infos", ErrCorruptMap)
	}
	if len(c.Base) != baseEntries {
		return nil, fmt.Errorf("%w: base has %d entries, want %d", ErrCorruptMap, len(c.Base), baseEntries)
	}

	blocks := make(UncompressedMap, mapCells)
	air := c.BlockInfos[0]
	for i := range blocks {
		blocks[i] = air
	}

	for y := 0; y < MapHeight; y++ {
		for x := 0; x < MapWidth; x++ {
			col := uint64(c.Base[y*MapWidth+x])
			if col >= uint64(len(c.ColumnInfos)) {
				return nil, fmt.Errorf("%w: column (%d,%d) index %d of %d", ErrCorruptMap, x, y, col, len(c.ColumnInfos))
			}

			height, offset := columnHeader(c.ColumnInfos[col])
			if height > MapDepth {
				return nil, fmt.Errorf("%w: column (%d,%d) height %d", ErrCorruptMap, x, y, height)
			}

			for z := offset; z < height; z++ {
				slot := col + uint64(z-offset) + 1
				if slot >= uint64(len(c.ColumnInfos)) {
					return nil, fmt.Errorf("%w: column (%d,%d) slot %d of %d", ErrCorruptMap, x, y, slot, len(c.ColumnInfos))
				}
				block := c.ColumnInfos[slot]
				if int64(block) >= int64(len(c.BlockInfos)) {
					return nil, fmt.Errorf("%w: column (%d,%d) block %d of %d", ErrCorruptMap, x, y, block, len(c.BlockInfos))
				}
				blocks[Index(x, y, z)] = c.BlockInfos[block]
			}
		}
	}

	return blocks, nil
}

// mapChunks accumulates optional chunks until the stream ends.
type mapChunks struct {
	compressed   *CompressedMap32
	uncompressed UncompressedMap
}

func (c *mapChunks) table() ChunkTable {
	t := ChunkTable{
		chunkCompressedMap32: func(r *bytes.Reader, _ uint32) error {
			m, err := parseCompressedMap32(r)
			c.compressed = m
			return err
		},
		chunkUncompressedMap: func(r *bytes.Reader, size uint32) error {
			m, err := parseUncompressedMap(r, size)
			c.uncompressed = m
			return err
		},
	}
	for _, tag := range mapSkippedChunks {
		t[tag] = nil
	}
	return t
}

func (c *mapChunks) build(header FileHeader, term Termination) (*Map, error) {
	m := &Map{Header: header, Termination: term}

	switch {
	case c.compressed != nil:
		blocks, err := Expand(c.compressed)
		if err != nil {
			return nil, err
		}
		m.Compressed = c.compressed
		m.Blocks = blocks
	case c.uncompressed != nil:
		m.Blocks = c.uncompressed
	default:
		return nil, ErrMissingCompressedMap
	}

	return m, nil
}

// ParseGMP parses a map file from raw bytes and expands it.
func ParseGMP(data []byte, opts ...Option) (*Map, error) {
	o := newOptions(opts)
	r := bytes.NewReader(data)

	header, err := readHeader(r, MapMagic, o)
	if err != nil {
		return nil, err
	}

	var chunks mapChunks
	term, err := readChunks(r, chunks.table(), o)
	if err != nil {
		return nil, err
	}

	return chunks.build(header, term)
}

// ParseGMPFile parses a map file from disk.
func ParseGMPFile(path string, opts ...Option) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GMP file: %w", err)
	}
	return ParseGMP(data, opts...)
}

// parseCompressedMap32 reads a DMAP payload. The embedded counts decide how
// much is read; the declared chunk size is checked by the chunk reader.
func parseCompressedMap32(r *bytes.Reader) (*CompressedMap32, error) {
	m := &CompressedMap32{Base: make([]uint32, baseEntries)}
	if err := binary.Read(r, binary.LittleEndian, m.Base); err != nil {
		return nil, fmt.Errorf("%w: reading base", ErrTruncatedData)
	}

	var columnCount uint32
	if err := binary.Read(r, binary.LittleEndian, &columnCount); err != nil {
		return nil, fmt.Errorf("%w: reading column count", ErrTruncatedData)
	}
	if int64(columnCount)*4 > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d column words, %d bytes left", ErrTruncatedData, columnCount, r.Len())
	}
	m.ColumnInfos = make([]uint32, columnCount)
	if err := binary.Read(r, binary.LittleEndian, m.ColumnInfos); err != nil {
		return nil, fmt.Errorf("%w: reading columns", ErrTruncatedData)
	}

	var blockCount uint32
	if err := binary.Read(r, binary.LittleEndian, &blockCount); err != nil {
		return nil, fmt.Errorf("%w: reading block count", ErrTruncatedData)
	}
	blocks, err := parseBlockInfos(r, int(blockCount))
	if err != nil {
		return nil, err
	}
	m.BlockInfos = blocks

	return m, nil
}

// parseUncompressedMap reads a UMAP payload, which must hold exactly one
// record per cell.
func parseUncompressedMap(r *bytes.Reader, size uint32) (UncompressedMap, error) {
	if int64(size) != mapCells*BlockInfoSize {
		return nil, fmt.Errorf("%w: UMAP is %d bytes, want %d", ErrInvalidChunkSize, size, mapCells*BlockInfoSize)
	}
	blocks, err := parseBlockInfos(r, mapCells)
	if err != nil {
		return nil, err
	}
	return UncompressedMap(blocks), nil
}
