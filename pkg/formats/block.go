package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// BlockInfoSize is the on-disk size of one block record.
const BlockInfoSize = 12

// Rotation is the clockwise rotation applied to a face texture.
type Rotation uint8

// Rotation constants, as stored in bits 14-15 of a face word.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 1
	Rotate180 Rotation = 2
	Rotate270 Rotation = 3
)

// Degrees returns the clockwise rotation in degrees.
func (r Rotation) Degrees() int {
	return int(r&0x3) * 90
}

// Radians returns the clockwise rotation in radians.
func (r Rotation) Radians() float64 {
	return float64(r&0x3) * math.Pi / 2
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", r.Degrees())
}

// Face describes the texture on one side of a block.
type Face struct {
	TileID uint16 // 0 = no face
	Flat   bool
	Flip   bool
	Rotate Rotation
}

// Visible reports whether the face carries a texture.
func (f Face) Visible() bool {
	return f.TileID != 0
}

// LidFace has the same bit layout as Face but sits on top of the block,
// where it follows the slope geometry.
type LidFace Face

// Visible reports whether the lid carries a texture.
func (f LidFace) Visible() bool {
	return f.TileID != 0
}

// DecodeFace unpacks a 16-bit face word. Bits 10-11 are ignored.
func DecodeFace(word uint16) Face {
	return Face{
		TileID: word & 0x03FF,
		Flat:   (word>>12)&0x1 == 1,
		Flip:   (word>>13)&0x1 == 1,
		Rotate: decodeRotation(uint8(word >> 14)),
	}
}

// DecodeLidFace unpacks a 16-bit lid word.
func DecodeLidFace(word uint16) LidFace {
	return LidFace(DecodeFace(word))
}

func decodeRotation(v uint8) Rotation {
	switch v & 0x3 {
	case 1:
		return Rotate90
	case 2:
		return Rotate180
	case 3:
		return Rotate270
	default:
		return Rotate0
	}
}

// SlopeKind is the variant tag of a SlopeType.
type SlopeKind uint8

const (
	SlopeNone SlopeKind = iota
	SlopeDegree26
	SlopeDegree45
	SlopeDiagonal
	SlopeThreeSidedDiagonal
	SlopePartialBlock
	SlopeAbove // surface is defined by the cell above
	SlopeIgnore
)

func (k SlopeKind) String() string {
	switch k {
	case SlopeNone:
		return "None"
	case SlopeDegree26:
		return "Degree26"
	case SlopeDegree45:
		return "Degree45"
	case SlopeDiagonal:
		return "Diagonal"
	case SlopeThreeSidedDiagonal:
		return "ThreeSidedDiagonal"
	case SlopePartialBlock:
		return "PartialBlock"
	case SlopeAbove:
		return "SlopeAbove"
	case SlopeIgnore:
		return "Ignore"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Direction is the direction a slope rises towards.
type Direction uint8

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "Up"
	case DirDown:
		return "Down"
	case DirLeft:
		return "Left"
	case DirRight:
		return "Right"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// SlopeLevel selects the lower or upper half of a two-block 26° ramp.
type SlopeLevel uint8

const (
	LevelLow SlopeLevel = iota
	LevelHigh
)

func (l SlopeLevel) String() string {
	if l == LevelHigh {
		return "High"
	}
	return "Low"
}

// Corner names the corner a diagonal block is cut towards.
type Corner uint8

const (
	CornerUpLeft Corner = iota
	CornerUpRight
	CornerDownLeft
	CornerDownRight
)

func (c Corner) String() string {
	switch c {
	case CornerUpLeft:
		return "UpLeft"
	case CornerUpRight:
		return "UpRight"
	case CornerDownLeft:
		return "DownLeft"
	case CornerDownRight:
		return "DownRight"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// PartialPosition is the side a partial block hugs.
type PartialPosition uint8

const (
	PartialLeft PartialPosition = iota
	PartialRight
	PartialTop
	PartialBottom
)

func (p PartialPosition) String() string {
	switch p {
	case PartialLeft:
		return "Left"
	case PartialRight:
		return "Right"
	case PartialTop:
		return "Top"
	case PartialBottom:
		return "Bottom"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// SlopeType is the decoded slope classification of a block. Only the payload
// fields that belong to Kind are meaningful; the others stay zero.
//
//	Degree26:           Direction, Level
//	Degree45:           Direction
//	Diagonal:           Corner
//	ThreeSidedDiagonal: Corner
//	PartialBlock:       Position
type SlopeType struct {
	Kind      SlopeKind
	Direction Direction
	Level     SlopeLevel
	Corner    Corner
	Position  PartialPosition
	Code      uint8 // raw 6-bit slope id, kept for diagnostics
}

func (s SlopeType) String() string {
	switch s.Kind {
	case SlopeDegree26:
		return fmt.Sprintf("Degree26(%s,%s)", s.Direction, s.Level)
	case SlopeDegree45:
		return fmt.Sprintf("Degree45(%s)", s.Direction)
	case SlopeDiagonal, SlopeThreeSidedDiagonal:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Corner)
	case SlopePartialBlock:
		return fmt.Sprintf("PartialBlock(%s)", s.Position)
	case SlopeIgnore:
		return fmt.Sprintf("Ignore(%d)", s.Code)
	default:
		return s.Kind.String()
	}
}

// slopeTable lists every slope id with a known shape.
var slopeTable = map[uint8]SlopeType{
	0: {Kind: SlopeNone},

	1: {Kind: SlopeDegree26, Direction: DirUp, Level: LevelLow},
	2: {Kind: SlopeDegree26, Direction: DirUp, Level: LevelHigh},
	3: {Kind: SlopeDegree26, Direction: DirDown, Level: LevelLow},
	4: {Kind: SlopeDegree26, Direction: DirDown, Level: LevelHigh},
	5: {Kind: SlopeDegree26, Direction: DirLeft, Level: LevelLow},
	6: {Kind: SlopeDegree26, Direction: DirLeft, Level: LevelHigh},
	7: {Kind: SlopeDegree26, Direction: DirRight, Level: LevelLow},
	8: {Kind: SlopeDegree26, Direction: DirRight, Level: LevelHigh},

	41: {Kind: SlopeDegree45, Direction: DirUp},
	42: {Kind: SlopeDegree45, Direction: DirDown},
	43: {Kind: SlopeDegree45, Direction: DirLeft},
	44: {Kind: SlopeDegree45, Direction: DirRight},

	45: {Kind: SlopeDiagonal, Corner: CornerUpLeft},
	46: {Kind: SlopeDiagonal, Corner: CornerUpRight},
	47: {Kind: SlopeDiagonal, Corner: CornerDownLeft},
	48: {Kind: SlopeDiagonal, Corner: CornerDownRight},

	49: {Kind: SlopeThreeSidedDiagonal, Corner: CornerUpLeft},
	50: {Kind: SlopeThreeSidedDiagonal, Corner: CornerUpRight},
	51: {Kind: SlopeThreeSidedDiagonal, Corner: CornerDownLeft},
	52: {Kind: SlopeThreeSidedDiagonal, Corner: CornerDownRight},

	53: {Kind: SlopePartialBlock, Position: PartialLeft},
	54: {Kind: SlopePartialBlock, Position: PartialRight},
	55: {Kind: SlopePartialBlock, Position: PartialTop},
	56: {Kind: SlopePartialBlock, Position: PartialBottom},

	// TODO: ids 57-60 look like corner partial blocks in real maps; confirm before adding them.
	63: {Kind: SlopeAbove},
}

// DecodeSlope maps a slope byte to its SlopeType. The low two bits are
// reserved; ids without a known shape decode to SlopeIgnore.
func DecodeSlope(b uint8) SlopeType {
	id := b >> 2
	s, ok := slopeTable[id]
	if !ok {
		s = SlopeType{Kind: SlopeIgnore}
	}
	s.Code = id
	return s
}

// BlockInfo describes one voxel cell.
type BlockInfo struct {
	Left   Face
	Right  Face
	Top    Face
	Bottom Face
	Lid    LidFace
	Arrows uint8 // movement restriction bitmask
	Slope  SlopeType
}

// DecodeBlockInfo decodes a 12-byte block record.
func DecodeBlockInfo(rec [BlockInfoSize]byte) BlockInfo {
	word := func(i int) uint16 {
		return binary.LittleEndian.Uint16(rec[i*2:])
	}
	return BlockInfo{
		Left:   DecodeFace(word(0)),
		Right:  DecodeFace(word(1)),
		Top:    DecodeFace(word(2)),
		Bottom: DecodeFace(word(3)),
		Lid:    DecodeLidFace(word(4)),
		Arrows: rec[10],
		Slope:  DecodeSlope(rec[11]),
	}
}

// parseBlockInfos reads count consecutive block records.
func parseBlockInfos(r *bytes.Reader, count int) ([]BlockInfo, error) {
	if int64(count)*BlockInfoSize > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d block records need %d bytes, %d left",
			ErrTruncatedData, count, count*BlockInfoSize, r.Len())
	}

	blocks := make([]BlockInfo, count)
	var rec [BlockInfoSize]byte
	for i := range blocks {
		if _, err := r.Read(rec[:]); err != nil {
			return nil, fmt.Errorf("%w: reading block %d", ErrTruncatedData, i)
		}
		blocks[i] = DecodeBlockInfo(rec)
	}
	return blocks, nil
}
