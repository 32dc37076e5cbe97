// Package shapefile decodes ESRI shapefiles (.shp, .shx, .dbf and .cpg) held in
// memory into orb geometries and geojson features. It can also re-encode a
// decoded collection as FlatGeobuf.
//
// A Reader is constructed from raw buffers, validates every header eagerly and
// then decodes individual records on demand through the .shx offset index, so
// reading record N never requires reading records 0..N-1.
//
// Readers keep a read position per file and are not safe for concurrent use.
// Use one Reader per goroutine or guard a shared Reader with a mutex.
package shapefile

import (
	"errors"

	"go.uber.org/zap"
)

// Common errors returned by this package.
var (
	ErrInvalidFormat       = errors.New("shapefile: invalid format")
	ErrShapeTypeMismatch   = errors.New("shapefile: shape type mismatch")
	ErrIndexOutOfRange     = errors.New("shapefile: index out of range")
	ErrRecordCountMismatch = errors.New("shapefile: record count mismatch")
	ErrUnsupportedEncoding = errors.New("shapefile: unsupported encoding")
	ErrUnknownCodepage     = errors.New("shapefile: unknown codepage")
	ErrOrphanHole          = errors.New("shapefile: orphan polygon hole")
	ErrOutOfBounds         = errors.New("shapefile: offset out of bounds")
	ErrUnsupportedShape    = errors.New("shapefile: unsupported shape type")
	ErrNilCollection       = errors.New("shapefile: nil or empty feature collection")
)

// Options configures a Reader.
type Options struct {
	// Logger receives diagnostics such as orphan holes. Defaults to a no-op logger.
	Logger *zap.Logger

	// Encoding overrides the contents of the .cpg buffer when non-empty,
	// e.g. "UTF-8", "ANSI 1251" or "ISO 88591".
	Encoding string

	// CodePages maps Windows/DOS codepage ids to text encodings.
	// Defaults to DefaultCodePages.
	CodePages CodePages

	// LanguageDrivers maps the .dbf language driver byte to a codepage id.
	// Defaults to DefaultLanguageDrivers.
	LanguageDrivers LanguageDrivers

	// OnOrphanHole is called for every polygon hole that no exterior ring contains.
	OnOrphanHole func(*OrphanHoleError)
}

// DefaultOptions returns default options for reading shapefiles.
func DefaultOptions() *Options {
	return &Options{
		Logger:          zap.NewNop(),
		CodePages:       DefaultCodePages(),
		LanguageDrivers: DefaultLanguageDrivers(),
	}
}

// withDefaults fills the zero fields of opts without modifying the caller's value.
func (o *Options) withDefaults() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}
	out := *o
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.CodePages == nil {
		out.CodePages = def.CodePages
	}
	if out.LanguageDrivers == nil {
		out.LanguageDrivers = def.LanguageDrivers
	}
	return &out
}

func (o *Options) resolver() *EncodingResolver {
	return &EncodingResolver{
		CodePages:       o.CodePages,
		LanguageDrivers: o.LanguageDrivers,
	}
}
