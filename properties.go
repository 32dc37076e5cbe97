package shapefile

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// columnType maps a .dbf field to the FlatGeobuf column type its decoded
// values are written as.
func columnType(f Field) flattypes.ColumnType {
	switch f.Type {
	case FieldNumber, FieldFloat:
		if f.Decimals == 0 {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	case FieldDate:
		return flattypes.ColumnTypeDateTime
	case FieldLogical:
		return flattypes.ColumnTypeBool
	}
	return flattypes.ColumnTypeString
}

// columnsForFields builds one nullable column per field, in field order.
func columnsForFields(fields []Field, builder *flatbuffers.Builder) []*writer.Column {
	columns := make([]*writer.Column, 0, len(fields))
	for _, f := range fields {
		col := writer.NewColumn(builder)
		col.SetName(f.Name)
		col.SetTitle(f.Name)
		col.SetType(columnType(f))
		col.SetNullable(true)
		columns = append(columns, col)
	}
	return columns
}

// encodeProperties encodes one attribute row as repeated
// [uint16 column index][value] entries. Null values are omitted.
func encodeProperties(fields []Field, values []any) []byte {
	var buf []byte
	for i, f := range fields {
		if i >= len(values) || values[i] == nil || i > math.MaxUint16 {
			continue
		}
		value := appendValue(nil, columnType(f), values[i])
		if value == nil {
			continue
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(i))
		buf = append(buf, value...)
	}
	return buf
}

// appendValue encodes v for a column of type t. It returns nil when v does not
// have the Go type the decoder produces for that column.
func appendValue(buf []byte, t flattypes.ColumnType, v any) []byte {
	switch t {
	case flattypes.ColumnTypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil
		}
		if b {
			return append(buf, 1)
		}
		return append(buf, 0)

	case flattypes.ColumnTypeLong:
		n, ok := v.(int64)
		if !ok {
			return nil
		}
		return binary.LittleEndian.AppendUint64(buf, uint64(n))

	case flattypes.ColumnTypeDouble:
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))

	case flattypes.ColumnTypeDateTime:
		d, ok := v.(time.Time)
		if !ok {
			return nil
		}
		return appendString(buf, d.Format("2006-01-02"))

	case flattypes.ColumnTypeString:
		s, ok := v.(string)
		if !ok {
			return nil
		}
		return appendString(buf, s)
	}
	return nil
}

// appendString writes a uint32 byte length followed by the UTF-8 bytes.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
