// Package formats provides parsers for GBH style (.sty) and map (.gmp) files.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Common format errors.
var (
	ErrTruncatedData = errors.New("truncated data")
	ErrInvalidMagic  = errors.New("invalid file magic")
)

// File type tags found in the leading header.
const (
	StyleMagic = "GBST"
	MapMagic   = "GBMP"
)

// FileHeader is the fixed header that precedes the chunk stream.
type FileHeader struct {
	FileType string
	Version  uint16
}

// String returns the header as "TYPE vN".
func (h FileHeader) String() string {
	return fmt.Sprintf("%s v%d", h.FileType, h.Version)
}

// options control decoder behavior.
type options struct {
	strict bool
	log    *zap.Logger
}

// Option configures ParseSTY and ParseGMP.
type Option func(*options)

// WithStrict makes the decoder fail on unknown chunk tags, chunk size
// mismatches and unexpected header magic instead of tolerating them.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithLogger sets the logger used for chunk diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// readHeader reads the 4-byte file type tag and u16 version.
func readHeader(r *bytes.Reader, magic string, o *options) (FileHeader, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return FileHeader{}, fmt.Errorf("%w: reading file type", ErrTruncatedData)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return FileHeader{}, fmt.Errorf("%w: reading version", ErrTruncatedData)
	}

	header := FileHeader{FileType: string(tag[:]), Version: version}
	if header.FileType != magic {
		if o.strict {
			return FileHeader{}, fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, magic, header.FileType)
		}
		o.log.Warn("unexpected file magic",
			zap.String("expected", magic),
			zap.String("got", header.FileType))
	}

	o.log.Debug("read header",
		zap.String("type", header.FileType),
		zap.Uint16("version", header.Version))

	return header, nil
}
