package snmp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// Value is one raw PDU payload. Accessors report ok=false instead of
// guessing when the wire type does not fit the request; the normalizer
// turns those into unknown fields rather than failing the record.
type Value struct {
	raw any
}

// ValueOf wraps a raw payload. Exposed for tests and fakes.
func ValueOf(raw any) Value { return Value{raw: raw} }

// Int extracts an integer payload.
func (v Value) Int() (int, bool) {
	switch x := v.raw.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Uint64 extracts an unsigned counter payload.
func (v Value) Uint64() (uint64, bool) {
	switch x := v.raw.(type) {
	case uint64:
		return x, true
	case uint32:
		return uint64(x), true
	case uint:
		return uint64(x), true
	case int:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case int64:
		if x < 0 {
			return 0, false
		}
		return uint64(x), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Float extracts a numeric payload as float64.
func (v Value) Float() (float64, bool) {
	if n, ok := v.Int(); ok {
		return float64(n), true
	}
	if u, ok := v.Uint64(); ok {
		return float64(u), true
	}
	if s, ok := v.raw.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String extracts a textual payload.
func (v Value) String() (string, bool) {
	switch x := v.raw.(type) {
	case []byte:
		return string(x), true
	case string:
		return x, true
	default:
		if x == nil {
			return "", false
		}
		return fmt.Sprintf("%v", x), true
	}
}

// Bytes extracts a raw octet payload (PortList bitmaps, MAC addresses).
func (v Value) Bytes() ([]byte, bool) {
	switch x := v.raw.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	default:
		return nil, false
	}
}

// RawValues is the result of one category fetch: full OID -> payload.
// Scalars appear under their instance OID (".0" suffix); table cells under
// base OID + instance suffix.
type RawValues map[string]Value

// Get returns the payload of one exact OID.
func (rv RawValues) Get(oid string) (Value, bool) {
	v, ok := rv[oid]
	return v, ok
}

// GetString is a convenience for scalar text OIDs.
func (rv RawValues) GetString(oid string) (string, bool) {
	v, ok := rv[oid]
	if !ok {
		return "", false
	}
	return v.String()
}

// Row is one table cell: the instance suffix below the walked base OID,
// plus its payload. Index is the final numeric component of the suffix.
type Row struct {
	Suffix string
	Index  int
	Value  Value
}

// Rows returns all cells under a base OID, sorted by suffix. Cells whose
// final component is not numeric get Index -1 and are kept, since some
// tables (IP address tables) carry structured suffixes.
func (rv RawValues) Rows(base string) []Row {
	prefix := base + "."
	var rows []Row
	for oid, v := range rv {
		if !strings.HasPrefix(oid, prefix) {
			continue
		}
		suffix := oid[len(prefix):]
		rows = append(rows, Row{Suffix: suffix, Index: lastIndex(suffix), Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Suffix < rows[j].Suffix })
	return rows
}

// lastIndex parses the final numeric component of an instance suffix,
// returning -1 when it is not a number.
func lastIndex(suffix string) int {
	s := suffix
	if dot := strings.LastIndex(s, "."); dot >= 0 {
		s = s[dot+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// pduValue unwraps a gosnmp PDU into a Value, filtering the "no such"
// markers that agents return for unimplemented objects.
func pduValue(pdu gosnmp.SnmpPDU) (Value, bool) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return Value{}, false
	}
	return Value{raw: pdu.Value}, true
}

// normalizeOID strips the leading dot gosnmp puts on PDU names.
func normalizeOID(oid string) string {
	return strings.TrimPrefix(oid, ".")
}
