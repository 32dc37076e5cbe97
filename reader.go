package shapefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Reader provides random access to the records of a shapefile held in memory.
type Reader struct {
	shapes *ShapeReader
	table  *TableReader // nil without a .dbf
	log    *zap.Logger
}

// NewReader reads the .shp file at path together with its .shx, .dbf and
// .cpg siblings. The extension of path may be omitted, and sibling
// extensions are matched case-insensitively. Only the .shx is required.
func NewReader(path string, opts *Options) (*Reader, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		base = path
	}

	shp, err := readSibling(base, ".shp", true)
	if err != nil {
		return nil, err
	}
	shx, err := readSibling(base, ".shx", true)
	if err != nil {
		return nil, err
	}
	dbf, err := readSibling(base, ".dbf", false)
	if err != nil {
		return nil, err
	}
	cpg, err := readSibling(base, ".cpg", false)
	if err != nil {
		return nil, err
	}

	r, err := NewReaderFromData(shp, shx, dbf, cpg, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", base, err)
	}
	return r, nil
}

// readSibling loads base+ext, trying the exact name first and then any entry
// in the same directory whose name differs only in case.
func readSibling(base, ext string, required bool) ([]byte, error) {
	data, err := os.ReadFile(base + ext)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	dir, name := filepath.Split(base + ext)
	if dir == "" {
		dir = "."
	}
	entries, derr := os.ReadDir(dir)
	if derr == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(e.Name(), name) {
				return os.ReadFile(filepath.Join(dir, e.Name()))
			}
		}
	}
	if required {
		return nil, err
	}
	return nil, nil
}

// NewReaderFromData creates a reader from raw file contents. dbf and cpg may
// be nil. All headers are validated before the reader is returned.
func NewReaderFromData(shp, shx, dbf, cpg []byte, opts *Options) (*Reader, error) {
	opts = opts.withDefaults()

	shapes, err := newShapeReader(shp, shx, opts)
	if err != nil {
		return nil, err
	}
	r := &Reader{shapes: shapes, log: opts.Logger}

	if dbf != nil {
		table, err := newTableReader(dbf, cpg, opts)
		if err != nil {
			return nil, err
		}
		if table.RecordCount() != shapes.RecordCount() {
			return nil, fmt.Errorf("%w: shx lists %d records, dbf has %d",
				ErrRecordCountMismatch, shapes.RecordCount(), table.RecordCount())
		}
		r.table = table
	}

	r.log.Debug("opened shapefile",
		zap.Stringer("shape_type", shapes.Header().ShapeType),
		zap.Int("records", shapes.RecordCount()),
		zap.Int("fields", len(r.Fields())),
		zap.String("encoding", r.Encoding()))
	return r, nil
}

// Header returns the .shp file header.
func (r *Reader) Header() Header { return r.shapes.Header() }

// Bound returns the extent declared in the .shp header.
func (r *Reader) Bound() orb.Bound { return r.shapes.Header().Bound }

// Fields returns the attribute field descriptors, or nil without a .dbf.
func (r *Reader) Fields() []Field {
	if r.table == nil {
		return nil
	}
	return r.table.Fields()
}

// TableHeader returns the .dbf header and false when no .dbf was supplied.
func (r *Reader) TableHeader() (TableHeader, bool) {
	if r.table == nil {
		return TableHeader{}, false
	}
	return r.table.Header(), true
}

// RecordCount returns the number of records in the file.
func (r *Reader) RecordCount() int { return r.shapes.RecordCount() }

// Encoding returns the name of the attribute text encoding, or "" without a .dbf.
func (r *Reader) Encoding() string {
	if r.table == nil {
		return ""
	}
	return r.table.Encoding()
}

func (r *Reader) checkIndex(index int) error {
	if index < 0 || index >= r.RecordCount() {
		return fmt.Errorf("%w: record %d, count %d", ErrIndexOutOfRange, index, r.RecordCount())
	}
	return nil
}

// ReadGeometry decodes the geometry of the record at index.
func (r *Reader) ReadGeometry(index int) (Geometry, error) {
	if err := r.checkIndex(index); err != nil {
		return Geometry{}, err
	}
	return r.shapes.ReadGeometry(index)
}

// ReadAttributes decodes the attribute row of the record at index. It returns
// nil without a .dbf.
func (r *Reader) ReadAttributes(index int) ([]any, error) {
	if err := r.checkIndex(index); err != nil {
		return nil, err
	}
	if r.table == nil {
		return nil, nil
	}
	return r.table.ReadRecord(index)
}

// ReadFeature decodes the geometry and attributes of the record at index.
func (r *Reader) ReadFeature(index int) (*Feature, error) {
	geom, err := r.ReadGeometry(index)
	if err != nil {
		return nil, err
	}
	attrs, err := r.ReadAttributes(index)
	if err != nil {
		return nil, err
	}
	return &Feature{
		Index:      index,
		Geometry:   geom,
		Attributes: attrs,
		fields:     r.Fields(),
	}, nil
}

// ReadAll reads every record as a FeatureCollection. The first record that
// fails to decode aborts the read.
func (r *Reader) ReadAll() (*FeatureCollection, error) {
	fc := &FeatureCollection{
		Fields:   r.Fields(),
		Features: make([]*Feature, 0, r.RecordCount()),
	}
	for i := 0; i < r.RecordCount(); i++ {
		f, err := r.ReadFeature(i)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	return fc, nil
}

// ReadGeometries reads the geometry of every record without attributes.
// Null records are included.
func (r *Reader) ReadGeometries() ([]Geometry, error) {
	out := make([]Geometry, 0, r.RecordCount())
	for i := 0; i < r.RecordCount(); i++ {
		g, err := r.ReadGeometry(i)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
