package formats

import (
	"bytes"
	"encoding/binary"
)

// testChunk is one (tag, payload) record for building synthetic files.
type testChunk struct {
	tag     string
	payload []byte
	size    int // declared size; -1 means len(payload)
}

func chunk(tag string, payload []byte) testChunk {
	return testChunk{tag: tag, payload: payload, size: -1}
}

// createTestFile builds a header followed by the given chunks.
func createTestFile(magic string, chunks ...testChunk) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(magic)
	binary.Write(buf, binary.LittleEndian, uint16(700))

	for _, c := range chunks {
		buf.WriteString(c.tag)
		size := c.size
		if size < 0 {
			size = len(c.payload)
		}
		binary.Write(buf, binary.LittleEndian, uint32(size))
		buf.Write(c.payload)
	}
	return buf.Bytes()
}

// patternPage fills a page with pixel(x, y) = f(x, y).
func patternPage(f func(x, y int) byte) []byte {
	page := make([]byte, PageSize*PageSize)
	for y := 0; y < PageSize; y++ {
		for x := 0; x < PageSize; x++ {
			page[y*PageSize+x] = f(x, y)
		}
	}
	return page
}

func u16s(values ...uint16) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, values)
	return buf.Bytes()
}

// paletteIndexPayload maps every tile to palette p.
func paletteIndexPayload(count int, p uint16) []byte {
	values := make([]uint16, count)
	for i := range values {
		values[i] = p
	}
	return u16s(values...)
}

// encodeBlock builds a 12-byte block record.
func encodeBlock(left, right, top, bottom, lid uint16, arrows, slope byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, []uint16{left, right, top, bottom, lid})
	buf.WriteByte(arrows)
	buf.WriteByte(slope)
	return buf.Bytes()
}

// encodeDMAP builds a DMAP payload from its three tables.
func encodeDMAP(base []uint32, columns []uint32, blocks [][]byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, base)
	binary.Write(buf, binary.LittleEndian, uint32(len(columns)))
	binary.Write(buf, binary.LittleEndian, columns)
	binary.Write(buf, binary.LittleEndian, uint32(len(blocks)))
	for _, b := range blocks {
		buf.Write(b)
	}
	return buf.Bytes()
}

// singleColumnDMAP returns a DMAP payload where every column is empty
// except (x, y), which stacks blockIDs starting at level offset.
func singleColumnDMAP(x, y, offset int, blockIDs []uint32, blocks [][]byte) []byte {
	base := make([]uint32, MapWidth*MapHeight)
	columns := []uint32{0}

	height := offset + len(blockIDs)
	base[y*MapWidth+x] = uint32(len(columns))
	columns = append(columns, uint32(height)|uint32(offset)<<8)
	columns = append(columns, blockIDs...)

	return encodeDMAP(base, columns, blocks)
}
