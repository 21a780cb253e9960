package formats

import (
	"bytes"
	"errors"
	"testing"
)

var (
	airBlock   = encodeBlock(0, 0, 0, 0, 0, 0, 0)
	wallBlock  = encodeBlock(10, 11, 12, 13, 14, 0, 0)
	rampBlock  = encodeBlock(0, 0, 0, 0, 0x4020, 0x3, 2<<2)
	roofBlock  = encodeBlock(0, 0, 0, 0, 0x1030, 0, 63<<2)
	testBlocks = [][]byte{airBlock, wallBlock, rampBlock, roofBlock}
)

func decodeTestBlock(raw []byte) BlockInfo {
	var rec [BlockInfoSize]byte
	copy(rec[:], raw)
	return DecodeBlockInfo(rec)
}

// compressedFromPayload decodes a DMAP payload without expanding it.
func compressedFromPayload(t *testing.T, payload []byte) *CompressedMap32 {
	t.Helper()
	m, err := parseCompressedMap32(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("parseCompressedMap32 failed: %v", err)
	}
	return m
}

func TestExpand_AllEmptyColumns(t *testing.T) {
	base := make([]uint32, MapWidth*MapHeight)
	payload := encodeDMAP(base, []uint32{0}, [][]byte{wallBlock, airBlock})

	blocks, err := Expand(compressedFromPayload(t, payload))
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(blocks) != MapWidth*MapHeight*MapDepth {
		t.Fatalf("expected %d cells, got %d", MapWidth*MapHeight*MapDepth, len(blocks))
	}

	sentinel := decodeTestBlock(wallBlock)
	for i, b := range blocks {
		if b != sentinel {
			t.Fatalf("cell %d is not the first block info", i)
		}
	}
}

func TestExpand_SingleColumn(t *testing.T) {
	payload := singleColumnDMAP(5, 7, 0, []uint32{1, 2}, testBlocks)

	blocks, err := Expand(compressedFromPayload(t, payload))
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	air := decodeTestBlock(airBlock)
	wall := decodeTestBlock(wallBlock)
	ramp := decodeTestBlock(rampBlock)

	if got := *blocks.At(5, 7, 0); got != wall {
		t.Errorf("(5,7,0) = %+v, expected wall", got)
	}
	if got := *blocks.At(5, 7, 1); got != ramp {
		t.Errorf("(5,7,1) = %+v, expected ramp", got)
	}

	populated := map[int]bool{Index(5, 7, 0): true, Index(5, 7, 1): true}
	for i, b := range blocks {
		if !populated[i] && b != air {
			t.Fatalf("cell %d should be air", i)
		}
	}
}

func TestExpand_ColumnOffset(t *testing.T) {
	// Height 4, offset 2: levels 0-1 stay air, levels 2-3 come from slots 1-2.
	payload := singleColumnDMAP(0, 255, 2, []uint32{3, 1}, testBlocks)

	blocks, err := Expand(compressedFromPayload(t, payload))
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	expected := []BlockInfo{
		decodeTestBlock(airBlock),
		decodeTestBlock(airBlock),
		decodeTestBlock(roofBlock),
		decodeTestBlock(wallBlock),
		decodeTestBlock(airBlock),
	}
	for z, want := range expected {
		if got := *blocks.At(0, 255, z); got != want {
			t.Errorf("level %d = %v, expected %v", z, got.Slope, want.Slope)
		}
	}
}

func TestExpand_SharedColumns(t *testing.T) {
	base := make([]uint32, MapWidth*MapHeight)
	columns := []uint32{0, 1, 1}
	for x := 0; x < MapWidth; x++ {
		base[3*MapWidth+x] = 1
	}

	blocks, err := Expand(compressedFromPayload(t, encodeDMAP(base, columns, testBlocks)))
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	wall := decodeTestBlock(wallBlock)
	for x := 0; x < MapWidth; x++ {
		if *blocks.At(x, 3, 0) != wall {
			t.Fatalf("(%d,3,0) should share the wall column", x)
		}
		if *blocks.At(x, 4, 0) == wall {
			t.Fatalf("(%d,4,0) should be air", x)
		}
	}
}

func TestExpand_Corrupt(t *testing.T) {
	base := make([]uint32, MapWidth*MapHeight)

	tests := []struct {
		name string
		m    *CompressedMap32
	}{
		{"no blocks", &CompressedMap32{Base: base, ColumnInfos: []uint32{0}}},
		{"short base", &CompressedMap32{Base: base[:10], ColumnInfos: []uint32{0}, BlockInfos: make([]BlockInfo, 1)}},
		{"column index", &CompressedMap32{Base: append([]uint32{5}, base[1:]...), ColumnInfos: []uint32{0}, BlockInfos: make([]BlockInfo, 1)}},
		{"column slot", &CompressedMap32{Base: base, ColumnInfos: []uint32{2}, BlockInfos: make([]BlockInfo, 1)}},
		{"block index", &CompressedMap32{Base: base, ColumnInfos: []uint32{1, 9}, BlockInfos: make([]BlockInfo, 1)}},
		{"height", &CompressedMap32{Base: base, ColumnInfos: []uint32{9}, BlockInfos: make([]BlockInfo, 1)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Expand(tc.m)
			if !errors.Is(err, ErrCorruptMap) {
				t.Errorf("expected ErrCorruptMap, got %v", err)
			}
		})
	}
}

func TestParseGMP_ValidFile(t *testing.T) {
	payload := singleColumnDMAP(1, 2, 1, []uint32{2}, testBlocks)
	data := createTestFile(MapMagic,
		chunk("ZONE", []byte("zones are skipped")),
		chunk("DMAP", payload),
		chunk("ANIM", nil),
	)

	m, err := ParseGMP(data)
	if err != nil {
		t.Fatalf("ParseGMP failed: %v", err)
	}

	if m.Header.FileType != MapMagic {
		t.Errorf("unexpected header %s", m.Header)
	}
	if m.Compressed == nil {
		t.Fatal("expected compressed map to be kept")
	}
	if len(m.Compressed.BlockInfos) != len(testBlocks) {
		t.Errorf("expected %d block infos, got %d", len(testBlocks), len(m.Compressed.BlockInfos))
	}
	if m.Termination.Kind != EndOfData {
		t.Errorf("expected EndOfData, got %s", m.Termination.Kind)
	}

	if got := m.Blocks.At(1, 2, 1); got.Slope.Kind != SlopeDegree26 || got.Lid.TileID != 0x20 {
		t.Errorf("(1,2,1) = %+v, expected the ramp block", got)
	}
	if m.ColumnHeight(1, 2) != 2 {
		t.Errorf("ColumnHeight(1,2) = %d, expected 2", m.ColumnHeight(1, 2))
	}
	if m.ColumnHeight(0, 0) != 0 {
		t.Errorf("ColumnHeight(0,0) = %d, expected 0", m.ColumnHeight(0, 0))
	}
	if m.ColumnHeight(-1, 0) != 0 {
		t.Error("out of bounds column should have height 0")
	}
}

func TestParseGMP_MissingMap(t *testing.T) {
	data := createTestFile(MapMagic, chunk("LGHT", []byte("lights")))

	_, err := ParseGMP(data)
	if !errors.Is(err, ErrMissingCompressedMap) {
		t.Errorf("expected ErrMissingCompressedMap, got %v", err)
	}
}

func TestParseGMP_DeclaredSizeMismatch(t *testing.T) {
	payload := singleColumnDMAP(0, 0, 0, []uint32{1}, testBlocks)
	wrong := testChunk{tag: "DMAP", payload: payload, size: len(payload) - 12}

	// The embedded counts decide how much is read.
	m, err := ParseGMP(createTestFile(MapMagic, wrong))
	if err != nil {
		t.Fatalf("lenient ParseGMP failed: %v", err)
	}
	if len(m.Compressed.BlockInfos) != len(testBlocks) {
		t.Errorf("expected %d block infos, got %d", len(testBlocks), len(m.Compressed.BlockInfos))
	}

	_, err = ParseGMP(createTestFile(MapMagic, wrong), WithStrict())
	if !errors.Is(err, ErrChunkSizeMismatch) {
		t.Errorf("expected ErrChunkSizeMismatch, got %v", err)
	}
}

func TestParseGMP_Truncated(t *testing.T) {
	payload := singleColumnDMAP(0, 0, 0, []uint32{1}, testBlocks)

	tests := []struct {
		name string
		cut  int
	}{
		{"base", 1000},
		{"column count", MapWidth*MapHeight*4 + 2},
		{"columns", MapWidth*MapHeight*4 + 6},
		{"block record", len(payload) - 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := createTestFile(MapMagic, chunk("DMAP", payload[:tc.cut]))
			_, err := ParseGMP(data)
			if !errors.Is(err, ErrTruncatedData) {
				t.Errorf("expected ErrTruncatedData, got %v", err)
			}
		})
	}
}

func TestParseGMP_Uncompressed(t *testing.T) {
	payload := bytes.Repeat(airBlock, MapWidth*MapHeight*MapDepth)
	copy(payload[Index(9, 8, 7)*BlockInfoSize:], wallBlock)

	m, err := ParseGMP(createTestFile(MapMagic, chunk("UMAP", payload)))
	if err != nil {
		t.Fatalf("ParseGMP failed: %v", err)
	}
	if m.Compressed != nil {
		t.Error("UMAP-only map should have no compressed form")
	}
	if *m.Blocks.At(9, 8, 7) != decodeTestBlock(wallBlock) {
		t.Error("(9,8,7) should hold the wall block")
	}
	if m.ColumnHeight(9, 8) != MapDepth {
		t.Errorf("ColumnHeight = %d, expected %d", m.ColumnHeight(9, 8), MapDepth)
	}

	_, err = ParseGMP(createTestFile(MapMagic, chunk("UMAP", payload[:120])))
	if !errors.Is(err, ErrInvalidChunkSize) {
		t.Errorf("expected ErrInvalidChunkSize, got %v", err)
	}
}

func TestParseGMP_CompressedWinsOverUncompressed(t *testing.T) {
	umap := bytes.Repeat(roofBlock, MapWidth*MapHeight*MapDepth)
	dmap := singleColumnDMAP(0, 0, 0, nil, testBlocks)

	m, err := ParseGMP(createTestFile(MapMagic, chunk("UMAP", umap), chunk("DMAP", dmap)))
	if err != nil {
		t.Fatalf("ParseGMP failed: %v", err)
	}
	if *m.Blocks.At(100, 100, 4) != decodeTestBlock(airBlock) {
		t.Error("expected blocks from the DMAP chunk")
	}
}

func TestUncompressedMap_At(t *testing.T) {
	m := make(UncompressedMap, MapWidth*MapHeight*MapDepth)

	if m.At(255, 255, 7) == nil {
		t.Error("At(255,255,7) returned nil for valid coordinates")
	}
	for _, c := range [][3]int{{-1, 0, 0}, {256, 0, 0}, {0, 256, 0}, {0, 0, 8}, {0, 0, -1}} {
		if m.At(c[0], c[1], c[2]) != nil {
			t.Errorf("At(%d,%d,%d) should return nil", c[0], c[1], c[2])
		}
	}
	if Index(1, 2, 3) != 1+2*256+3*256*256 {
		t.Errorf("Index(1,2,3) = %d", Index(1, 2, 3))
	}
}
