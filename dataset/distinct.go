package dataset

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// Distinct drops rows whose values over cols equal an earlier row's. With no
// cols the whole row is compared. First occurrences are kept in order.
func (ds *Dataset) Distinct(cols ...string) (*Dataset, error) {
	if len(cols) == 0 {
		cols = ds.columns
	}
	if err := ds.Require(cols...); err != nil {
		return nil, err
	}
	seen := make(map[uint64][]Row, len(ds.rows))
	out := ds.derive(ds.columns)
	for _, r := range ds.rows {
		h := hashRow(r, cols)
		dup := false
		for _, prev := range seen[h] {
			if equalOn(prev, r, cols) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], r)
		out.rows = append(out.rows, r)
	}
	return out, nil
}

func hashRow(r Row, cols []string) uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, c := range cols {
		switch x := r[c].(type) {
		case nil:
			h.Write([]byte{0})
		case time.Time:
			h.Write([]byte{1})
			binary.LittleEndian.PutUint64(buf[:], uint64(x.UnixNano()))
			h.Write(buf[:])
		case float64:
			h.Write([]byte{2})
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		default:
			s, _ := AsString(x)
			h.Write([]byte{3})
			h.WriteString(s)
		}
		h.Write([]byte{0xff})
	}
	return h.Sum64()
}

func equalOn(a, b Row, cols []string) bool {
	for _, c := range cols {
		if !ValueEqual(a[c], b[c]) {
			return false
		}
	}
	return true
}

// ValueEqual compares two cell values of the same kind: times by instant,
// integers by value across widths, strings and byte slices by content.
// Values of different kinds never match, so the result is symmetric.
func ValueEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if ia, ok := integer(a); ok {
		ib, ok := integer(b)
		return ok && ia == ib
	}
	if _, ok := integer(b); ok {
		return false
	}
	if ba, ok := a.([]byte); ok {
		a = string(ba)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	return a == b
}

// integer converts Go integer kinds only; strings and floats are not integers here.
func integer(v interface{}) (int64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return AsInt64(v)
	}
	return 0, false
}
