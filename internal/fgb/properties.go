package fgb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

// schema is the column layout shared by every feature of a file.
type schema struct {
	names []string
	types []flattypes.ColumnType
	index map[string]int
}

// inferSchema collects every property name, sorted, and picks the most
// general type seen for each. GeoJSON numbers decode as float64, so numeric
// columns are normally Double.
func inferSchema(features []*geojson.Feature) schema {
	seen := map[string]flattypes.ColumnType{}
	for _, f := range features {
		if f == nil {
			continue
		}
		for name, v := range f.Properties {
			if v == nil {
				if _, ok := seen[name]; !ok {
					seen[name] = flattypes.ColumnTypeString
				}
				continue
			}
			t := columnType(v)
			if prev, ok := seen[name]; ok {
				t = promote(prev, t)
			}
			seen[name] = t
		}
	}

	s := schema{index: make(map[string]int, len(seen))}
	for name := range seen {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	for i, name := range s.names {
		s.types = append(s.types, seen[name])
		s.index[name] = i
	}
	return s
}

func columnType(v any) flattypes.ColumnType {
	switch v := v.(type) {
	case bool:
		return flattypes.ColumnTypeBool
	case int, int64:
		return flattypes.ColumnTypeLong
	case int8, int16, int32:
		return flattypes.ColumnTypeInt
	case float32, float64:
		return flattypes.ColumnTypeDouble
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	case string:
		return flattypes.ColumnTypeString
	}
	return flattypes.ColumnTypeJson
}

var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeBool:   0,
	flattypes.ColumnTypeInt:    1,
	flattypes.ColumnTypeLong:   2,
	flattypes.ColumnTypeDouble: 3,
}

// promote returns a type able to hold values of both a and b.
func promote(a, b flattypes.ColumnType) flattypes.ColumnType {
	if a == b {
		return a
	}
	ra, okA := numericRank[a]
	rb, okB := numericRank[b]
	if okA && okB {
		if ra > rb {
			return a
		}
		return b
	}
	if a == flattypes.ColumnTypeString && b != flattypes.ColumnTypeJson ||
		b == flattypes.ColumnTypeString && a != flattypes.ColumnTypeJson {
		return flattypes.ColumnTypeString
	}
	return flattypes.ColumnTypeJson
}

// encodeProperties writes each non-null property as a little-endian uint16
// column index followed by the value in the column's type.
func encodeProperties(props geojson.Properties, s schema) ([]byte, error) {
	var buf bytes.Buffer
	for _, name := range s.names {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		i := s.index[name]
		binary.Write(&buf, binary.LittleEndian, uint16(i))
		if err := writeValue(&buf, v, s.types[i]); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any, t flattypes.ColumnType) error {
	le := binary.LittleEndian
	switch t {
	case flattypes.ColumnTypeBool:
		b, _ := v.(bool)
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case flattypes.ColumnTypeInt:
		n, _ := toFloat(v)
		return binary.Write(buf, le, int32(n))
	case flattypes.ColumnTypeLong:
		if jn, ok := v.(json.Number); ok {
			n, err := jn.Int64()
			if err != nil {
				return err
			}
			return binary.Write(buf, le, n)
		}
		n, _ := toFloat(v)
		return binary.Write(buf, le, int64(n))
	case flattypes.ColumnTypeDouble:
		n, _ := toFloat(v)
		return binary.Write(buf, le, n)
	case flattypes.ColumnTypeString:
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		writeString(buf, []byte(s))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeString(buf, data)
	}
	return nil
}

// writeString writes a uint32 byte length followed by the bytes.
func writeString(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(b)))
	buf.Write(b)
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// decodeProperties reads the property buffer of one feature using the
// header's columns. It stops at the first malformed entry.
func decodeProperties(data []byte, h *flattypes.Header) (geojson.Properties, error) {
	props := geojson.Properties{}
	le := binary.LittleEndian
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return props, fmt.Errorf("%w: truncated column index", ErrInvalidData)
		}
		i := int(le.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if i >= h.ColumnsLength() || !h.Columns(&col, i) {
			return props, fmt.Errorf("%w: column %d out of range", ErrInvalidData, i)
		}
		v, n, err := readValue(data[off:], col.Type())
		if err != nil {
			return props, fmt.Errorf("column %q: %w", col.Name(), err)
		}
		props[string(col.Name())] = v
		off += n
	}
	return props, nil
}

func readValue(data []byte, t flattypes.ColumnType) (any, int, error) {
	le := binary.LittleEndian
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: truncated value", ErrInvalidData)
		}
		return nil
	}

	switch t {
	case flattypes.ColumnTypeBool, flattypes.ColumnTypeByte, flattypes.ColumnTypeUByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		switch t {
		case flattypes.ColumnTypeBool:
			return data[0] != 0, 1, nil
		case flattypes.ColumnTypeByte:
			return float64(int8(data[0])), 1, nil
		}
		return float64(data[0]), 1, nil
	case flattypes.ColumnTypeShort, flattypes.ColumnTypeUShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		u := le.Uint16(data)
		if t == flattypes.ColumnTypeShort {
			return float64(int16(u)), 2, nil
		}
		return float64(u), 2, nil
	case flattypes.ColumnTypeInt, flattypes.ColumnTypeUInt, flattypes.ColumnTypeFloat:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		u := le.Uint32(data)
		switch t {
		case flattypes.ColumnTypeInt:
			return float64(int32(u)), 4, nil
		case flattypes.ColumnTypeFloat:
			return float64(math.Float32frombits(u)), 4, nil
		}
		return float64(u), 4, nil
	case flattypes.ColumnTypeLong, flattypes.ColumnTypeULong, flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		u := le.Uint64(data)
		switch t {
		case flattypes.ColumnTypeLong:
			return float64(int64(u)), 8, nil
		case flattypes.ColumnTypeDouble:
			return math.Float64frombits(u), 8, nil
		}
		return float64(u), 8, nil
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson, flattypes.ColumnTypeBinary:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(le.Uint32(data))
		if len(data)-4 < n {
			return nil, 0, fmt.Errorf("%w: truncated string", ErrInvalidData)
		}
		raw := data[4 : 4+n]
		if t != flattypes.ColumnTypeJson {
			return string(raw), 4 + n, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return string(raw), 4 + n, nil
		}
		return v, 4 + n, nil
	}
	return nil, 0, fmt.Errorf("%w: unsupported column type %d", ErrInvalidData, t)
}
