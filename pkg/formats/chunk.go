package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Chunk stream errors.
var (
	ErrUnknownChunk      = errors.New("unknown chunk tag")
	ErrChunkSizeMismatch = errors.New("chunk size mismatch")
	ErrInvalidChunkSize  = errors.New("invalid chunk size")
)

// chunkHeaderSize is the 4-byte tag plus the u32 payload size.
const chunkHeaderSize = 8

// ChunkHandler decodes one chunk payload. The reader is positioned at the
// first payload byte and the handler is expected to consume exactly size bytes.
type ChunkHandler func(r *bytes.Reader, size uint32) error

// ChunkTable lists the chunk tags a format knows about. A nil handler marks a
// known chunk that is skipped by its declared size.
type ChunkTable map[string]ChunkHandler

// TerminationKind describes why a chunk stream ended.
type TerminationKind int

const (
	EndOfData  TerminationKind = iota // no complete tag left to read
	UnknownTag                        // a tag outside the chunk table was met
)

// String returns a human-readable termination kind.
func (k TerminationKind) String() string {
	switch k {
	case EndOfData:
		return "EndOfData"
	case UnknownTag:
		return "UnknownTag"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Termination records where and why ReadChunks stopped.
type Termination struct {
	Kind   TerminationKind
	Tag    string // set for UnknownTag
	Offset int64  // offset of the tag that ended the stream
}

// ChunkError reports a failure inside a single chunk.
type ChunkError struct {
	Tag    string
	Offset int64
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %s at offset %d: %v", e.Tag, e.Offset, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// ReadChunks walks (tag, size, payload) records from r until the data runs
// out or an unknown tag is met. In strict mode an unknown tag is an error.
func ReadChunks(r *bytes.Reader, table ChunkTable, opts ...Option) (Termination, error) {
	return readChunks(r, table, newOptions(opts))
}

func readChunks(r *bytes.Reader, table ChunkTable, o *options) (Termination, error) {
	for {
		offset := r.Size() - int64(r.Len())

		var rawTag [4]byte
		if _, err := io.ReadFull(r, rawTag[:]); err != nil {
			return Termination{Kind: EndOfData, Offset: offset}, nil
		}
		tag := string(rawTag[:])
		handler, known := table[tag]

		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			if !known && !o.strict {
				o.log.Warn("chunk stream ends with a partial record", zap.String("tag", tag), zap.Int64("offset", offset))
				return Termination{Kind: UnknownTag, Tag: tag, Offset: offset}, nil
			}
			return Termination{}, &ChunkError{Tag: tag, Offset: offset, Err: fmt.Errorf("%w: reading chunk size", ErrTruncatedData)}
		}

		if !known {
			term := Termination{Kind: UnknownTag, Tag: tag, Offset: offset}
			if o.strict {
				return term, fmt.Errorf("%w: %q at offset %d", ErrUnknownChunk, tag, offset)
			}
			o.log.Warn("unknown chunk tag ends chunk stream",
				zap.String("tag", tag),
				zap.Int64("offset", offset),
				zap.Uint32("size", size))
			return term, nil
		}

		o.log.Debug("chunk", zap.String("tag", tag), zap.Uint32("size", size), zap.Int64("offset", offset))

		if handler == nil {
			if int64(size) > int64(r.Len()) {
				if o.strict {
					return Termination{}, &ChunkError{Tag: tag, Offset: offset, Err: fmt.Errorf("%w: skipping %d bytes, %d left", ErrTruncatedData, size, r.Len())}
				}
				o.log.Warn("skipped chunk runs past end of data", zap.String("tag", tag), zap.Uint32("size", size))
			}
			if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
				return Termination{}, &ChunkError{Tag: tag, Offset: offset, Err: err}
			}
			continue
		}

		start := offset + chunkHeaderSize
		if err := handler(r, size); err != nil {
			return Termination{}, &ChunkError{Tag: tag, Offset: offset, Err: err}
		}

		consumed := r.Size() - int64(r.Len()) - start
		if consumed != int64(size) {
			if o.strict {
				return Termination{}, &ChunkError{Tag: tag, Offset: offset, Err: fmt.Errorf("%w: declared %d, consumed %d", ErrChunkSizeMismatch, size, consumed)}
			}
			o.log.Warn("chunk size mismatch",
				zap.String("tag", tag),
				zap.Uint32("declared", size),
				zap.Int64("consumed", consumed))
		}
	}
}

// readPages reads size bytes as whole 256x256 pages.
func readPages(r *bytes.Reader, size uint32) ([][]byte, error) {
	if size%pageBytes != 0 {
		return nil, fmt.Errorf("%w: %d is not a multiple of %d", ErrInvalidChunkSize, size, pageBytes)
	}

	count := int(size / pageBytes)
	pages := make([][]byte, count)
	for i := range pages {
		pages[i] = make([]byte, pageBytes)
		if _, err := io.ReadFull(r, pages[i]); err != nil {
			return nil, fmt.Errorf("%w: reading page %d", ErrTruncatedData, i)
		}
	}
	return pages, nil
}
