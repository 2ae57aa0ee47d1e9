// Package join resolves keys between two datasets.
//
// HashJoin is the equality path: it indexes the smaller dataset and probes it
// with the larger one. NestedLoopJoin evaluates an arbitrary predicate over
// the full cross product and costs O(|left|·|right|); keep it to small inputs.
package join

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/internal/logs"
)

// Type selects which unmatched rows a hash join preserves.
type Type int

const (
	Inner Type = iota
	Left
	Right
	Outer
)

func (t Type) String() string {
	switch t {
	case Inner:
		return "inner"
	case Left:
		return "left"
	case Right:
		return "right"
	case Outer:
		return "outer"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType accepts inner, left, right and outer, case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inner":
		return Inner, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "outer", "full":
		return Outer, nil
	}
	return Inner, fmt.Errorf("unknown join type %q", s)
}

// Predicate decides whether a left and a right row belong together.
type Predicate func(left, right dataset.Row) bool

var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

// SetLogger replaces the logger used for join timing lines.
func SetLogger(l logs.Logger) {
	logger = l
}

type side struct {
	ds   *dataset.Dataset
	keys []string
}

// HashJoin joins left and right on leftKeys[i] == rightKeys[i] for every i.
//
// The output schema is the left columns followed by the right columns the
// left lacks; where both sides carry a column the right value wins. For a key
// occurring m times on one side and n times on the other, m×n rows are
// emitted. Left, Right and Outer additionally emit each unmatched row of the
// preserved side exactly once, with nil for the other side's columns.
func HashJoin(ctx context.Context, left, right *dataset.Dataset, leftKeys, rightKeys []string, jt Type) (*dataset.Dataset, error) {
	start := time.Now()
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, fmt.Errorf("hash join %s/%s: need matching non-empty key lists, got %v and %v", left.Name(), right.Name(), leftKeys, rightKeys)
	}
	if err := left.Require(leftKeys...); err != nil {
		return nil, err
	}
	if err := right.Require(rightKeys...); err != nil {
		return nil, err
	}

	l := side{ds: left, keys: leftKeys}
	r := side{ds: right, keys: rightKeys}
	build, probe := l, r
	buildIsLeft := true
	if right.Len() < left.Len() {
		build, probe = r, l
		buildIsLeft = false
	}

	index := make(map[string][]int, build.ds.Len())
	build.ds.Each(func(i int, row dataset.Row) bool {
		if k, ok := keyOf(row, build.keys); ok {
			index[k] = append(index[k], i)
		}
		return true
	})

	cols := outputColumns(left, right)
	out := dataset.New(left.Name()+"_"+right.Name(), cols)
	buildMatched := make([]bool, build.ds.Len())
	probeMatched := make([]bool, probe.ds.Len())

	probe.ds.Each(func(pi int, prow dataset.Row) bool {
		k, ok := keyOf(prow, probe.keys)
		if !ok {
			return true
		}
		for _, bi := range index[k] {
			buildMatched[bi] = true
			probeMatched[pi] = true
			brow := build.ds.Row(bi)
			if buildIsLeft {
				out.Append(combine(cols, brow, prow))
			} else {
				out.Append(combine(cols, prow, brow))
			}
		}
		return true
	})

	keepLeft := jt == Left || jt == Outer
	keepRight := jt == Right || jt == Outer
	leftMatched, rightMatched := buildMatched, probeMatched
	if !buildIsLeft {
		leftMatched, rightMatched = probeMatched, buildMatched
	}
	if keepLeft {
		left.Each(func(i int, row dataset.Row) bool {
			if !leftMatched[i] {
				out.Append(combine(cols, row, nil))
			}
			return true
		})
	}
	if keepRight {
		right.Each(func(i int, row dataset.Row) bool {
			if !rightMatched[i] {
				out.Append(combine(cols, nil, row))
			}
			return true
		})
	}

	logger.Debug(ctx, "hash join %s(%d) x %s(%d) type:%v build:%s rows:%d elapsed:%v",
		left.Name(), left.Len(), right.Name(), right.Len(), jt, build.ds.Name(), out.Len(), time.Since(start))
	return out, nil
}

// NestedLoopJoin emits a combined row for every (left, right) pair that pred
// accepts, in left-major order. Output schema follows HashJoin.
func NestedLoopJoin(ctx context.Context, left, right *dataset.Dataset, pred Predicate) *dataset.Dataset {
	start := time.Now()
	cols := outputColumns(left, right)
	out := dataset.New(left.Name()+"_"+right.Name(), cols)
	left.Each(func(_ int, lrow dataset.Row) bool {
		right.Each(func(_ int, rrow dataset.Row) bool {
			if pred(lrow, rrow) {
				out.Append(combine(cols, lrow, rrow))
			}
			return true
		})
		return true
	})
	logger.Debug(ctx, "nested loop join %s(%d) x %s(%d) rows:%d elapsed:%v",
		left.Name(), left.Len(), right.Name(), right.Len(), out.Len(), time.Since(start))
	return out
}

// Equal returns a predicate matching rows whose leftKey and rightKey values
// normalize to the same key.
func Equal(leftKey, rightKey string) Predicate {
	return func(l, r dataset.Row) bool {
		lk, ok := keyOf(l, []string{leftKey})
		if !ok {
			return false
		}
		rk, ok := keyOf(r, []string{rightKey})
		return ok && lk == rk
	}
}

func outputColumns(left, right *dataset.Dataset) []string {
	cols := left.Columns()
	for _, c := range right.Columns() {
		if !left.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func combine(cols []string, l, r dataset.Row) dataset.Row {
	row := make(dataset.Row, len(cols))
	for _, c := range cols {
		row[c] = nil
	}
	for k, v := range l {
		row[k] = v
	}
	if r != nil {
		for k, v := range r {
			row[k] = v
		}
	}
	return row
}

// keyOf encodes the normalized key values of row, each prefixed with its
// length so distinct tuples never share an encoding. ok is false if any key is null.
func keyOf(row dataset.Row, keys []string) (string, bool) {
	var sb strings.Builder
	for _, k := range keys {
		v, ok := normalize(row[k])
		if !ok {
			return "", false
		}
		sb.WriteString(strconv.Itoa(len(v)))
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	return sb.String(), true
}

func normalize(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return "s:" + x, true
	case []byte:
		return "s:" + string(x), true
	case time.Time:
		return "t:" + x.UTC().Round(0).Format(time.RFC3339Nano), true
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case bool:
		return fmt.Sprintf("b:%t", x), true
	}
	if n, ok := dataset.AsInt64(v); ok {
		return fmt.Sprintf("i:%d", n), true
	}
	return fmt.Sprintf("v:%v", v), true
}

func normalizeFloat(f float64) (string, bool) {
	if math.IsNaN(f) {
		return "", false
	}
	if n, ok := dataset.AsInt64(f); ok {
		return fmt.Sprintf("i:%d", n), true
	}
	return fmt.Sprintf("f:%v", f), true
}
