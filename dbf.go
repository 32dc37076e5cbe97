package shapefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	dbfDescriptorStart = 32
	dbfDescriptorLen   = 32
	dbfLanguageDriver  = 29
	dbfTerminator      = 0x0D
	dbfDeleted         = 0x2A
)

// FieldType is the single-character dBASE field type.
type FieldType byte

const (
	FieldCharacter FieldType = 'C'
	FieldNumber    FieldType = 'N'
	FieldFloat     FieldType = 'F'
	FieldDate      FieldType = 'D'
	FieldLogical   FieldType = 'L'
)

// TypeName returns a human-readable name for the field type.
func (t FieldType) TypeName() string {
	switch t {
	case FieldCharacter:
		return "Character"
	case FieldNumber:
		return "Number"
	case FieldFloat:
		return "Float"
	case FieldDate:
		return "Date"
	case FieldLogical:
		return "Logical"
	}
	return "Unknown"
}

// Field describes one column of the attribute table.
type Field struct {
	Name     string
	Type     FieldType
	Length   int
	Decimals int

	offset int // from the start of the record, after the deleted flag
}

// TableHeader holds the .dbf header values this package uses.
type TableHeader struct {
	Version        byte
	LastUpdated    time.Time
	RecordCount    int
	LanguageDriver byte
}

// TableReader decodes fixed-width records from a .dbf buffer.
type TableReader struct {
	c           *cursor
	header      TableHeader
	fields      []Field
	recordStart int
	recordSize  int
	decoder     *TextDecoder
}

// newTableReader parses the .dbf header and field descriptors. The text
// encoding comes from opts.Encoding, then the .cpg contents, then the
// language driver byte.
func newTableReader(dbf, cpg []byte, opts *Options) (*TableReader, error) {
	opts = opts.withDefaults()
	t := &TableReader{c: newCursor("dbf", dbf)}
	resolver := opts.resolver()

	hint := opts.Encoding
	if hint == "" {
		hint = strings.TrimSpace(string(cpg))
	}
	var err error
	if hint != "" {
		if t.decoder, err = resolver.FromHint(hint); err != nil {
			return nil, err
		}
	}
	if err := t.readHeader(resolver); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TableReader) readHeader(resolver *EncodingResolver) error {
	c := t.c
	if c.size() < dbfDescriptorStart {
		return fmt.Errorf("%w: dbf is %d bytes, shorter than its header", ErrInvalidFormat, c.size())
	}

	_ = c.seek(0)
	t.header.Version = c.byte()
	year, month, day := c.byte(), c.byte(), c.byte()
	t.header.LastUpdated = time.Date(1900+int(year), time.Month(month), int(day), 0, 0, 0, 0, time.UTC)
	t.header.RecordCount = int(c.int32(binary.LittleEndian))
	// the header and record sizes that follow are not reliable and are recomputed below

	_ = c.seek(dbfLanguageDriver)
	t.header.LanguageDriver = c.byte()
	if t.decoder == nil {
		dec, err := resolver.FromLanguageDriver(t.header.LanguageDriver)
		if err != nil {
			return err
		}
		t.decoder = dec
	}

	t.recordSize = 1 // deleted flag
	for pos := dbfDescriptorStart; ; pos += dbfDescriptorLen {
		if err := c.seek(pos); err != nil {
			return fmt.Errorf("%w: field descriptors are not terminated", ErrInvalidFormat)
		}
		if c.peekByte() == dbfTerminator {
			c.byte()
			break
		}
		if c.err() != nil {
			return fmt.Errorf("%w: field descriptors are not terminated", ErrInvalidFormat)
		}

		raw := c.take(10)
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		name, err := t.decoder.Decode(raw)
		if err != nil {
			return fmt.Errorf("field %d name: %w", len(t.fields), err)
		}

		_ = c.seek(pos + 11)
		typ := FieldType(c.byte())
		_ = c.seek(pos + 16)
		length := int(c.byte())
		decimals := int(c.byte())
		if err := c.err(); err != nil {
			return fmt.Errorf("%w: field descriptor at %d: %v", ErrInvalidFormat, pos, err)
		}

		t.fields = append(t.fields, Field{
			Name:     strings.TrimSpace(name),
			Type:     typ,
			Length:   length,
			Decimals: decimals,
			offset:   t.recordSize,
		})
		t.recordSize += length
	}

	t.recordStart = c.tell()
	return nil
}

// Header returns the decoded .dbf header.
func (t *TableReader) Header() TableHeader { return t.header }

// Fields returns the field descriptors in record order.
func (t *TableReader) Fields() []Field { return t.fields }

// RecordCount returns the record count declared in the header.
func (t *TableReader) RecordCount() int { return t.header.RecordCount }

// Encoding returns the name of the text encoding in use, e.g. "cp1252".
func (t *TableReader) Encoding() string { return t.decoder.Name }

// ReadRecord decodes the record at the zero-based index. Values are string,
// int64, float64, time.Time, bool or nil, one per field. A deleted record
// yields a nil for every field.
func (t *TableReader) ReadRecord(index int) ([]any, error) {
	if index < 0 || index >= t.header.RecordCount {
		return nil, fmt.Errorf("%w: record %d, count %d", ErrIndexOutOfRange, index, t.header.RecordCount)
	}

	c := t.c
	c.reset()
	start := t.recordStart + index*t.recordSize
	if err := c.seek(start); err != nil {
		return nil, fmt.Errorf("dbf record %d: %w", index, err)
	}

	values := make([]any, len(t.fields))
	if c.byte() == dbfDeleted {
		return values, nil
	}

	for i, f := range t.fields {
		_ = c.seek(start + f.offset)
		v, err := t.readValue(f)
		if err != nil {
			return nil, fmt.Errorf("dbf record %d field %q: %w", index, f.Name, err)
		}
		values[i] = v
	}
	if err := c.err(); err != nil {
		return nil, fmt.Errorf("dbf record %d: %w", index, err)
	}
	return values, nil
}

func (t *TableReader) readValue(f Field) (any, error) {
	switch f.Type {
	case FieldCharacter:
		return t.readString(f)
	case FieldNumber, FieldFloat:
		s, err := t.readString(f)
		if err != nil {
			return nil, err
		}
		return parseNumber(s, f.Decimals), nil
	case FieldDate:
		s, err := t.readString(f)
		if err != nil {
			return nil, err
		}
		return parseDate(s), nil
	case FieldLogical:
		return parseLogical(t.c.byte()), nil
	}
	return nil, nil
}

// readString reads up to the field length, stopping at a NUL byte.
func (t *TableReader) readString(f Field) (string, error) {
	raw := t.c.take(f.Length)
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s, err := t.decoder.Decode(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// parseNumber returns int64 for integer fields and float64 otherwise.
// Blank or malformed values (e.g. "*****" overflow markers) are nil.
func parseNumber(s string, decimals int) any {
	if s == "" {
		return nil
	}
	if decimals == 0 {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int64(f)
		}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// parseDate parses a YYYYMMDD value. Anything else is nil.
func parseDate(s string) any {
	if len(s) != 8 {
		return nil
	}
	d, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return d
}

func parseLogical(b byte) any {
	switch b {
	case 'y', 'Y':
		return true
	case 'n', 'N':
		return false
	}
	return nil
}
