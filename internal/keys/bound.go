package keys

import (
	"fmt"
	"strings"
)

type Direction byte

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Op is the comparator of a Bound: {exclusive, inclusive} x {lower, upper}
type Op byte

const (
	GreaterThan Op = iota + 1
	GreaterOrEqual
	LessThan
	LessOrEqual
)

func (op Op) Lower() bool {
	return op == GreaterThan || op == GreaterOrEqual
}

func (op Op) Inclusive() bool {
	return op == GreaterOrEqual || op == LessOrEqual
}

// Exclusive returns the exclusive comparator on the same side
func (op Op) Exclusive() Op {
	switch op {
	case GreaterThan, GreaterOrEqual:
		return GreaterThan
	case LessThan, LessOrEqual:
		return LessThan
	}
	panic(fmt.Sprintf("keys: invalid op %d", op))
}

func (op Op) String() string {
	switch op {
	case GreaterThan:
		return "gt"
	case GreaterOrEqual:
		return "gte"
	case LessThan:
		return "lt"
	case LessOrEqual:
		return "lte"
	}
	return "invalid"
}

// Bound one inequality on one field
type Bound struct {
	Op    Op
	Value Value
}

// admits reports whether v satisfies the bound
func (b Bound) admits(v Value) bool {
	c := v.Compare(b.Value)
	switch b.Op {
	case GreaterThan:
		return c > 0
	case GreaterOrEqual:
		return c >= 0
	case LessThan:
		return c < 0
	case LessOrEqual:
		return c <= 0
	}
	return false
}

func (b Bound) String() string {
	return b.Op.String() + " " + b.Value.String()
}

// Segment a single index scan: equality on the leading fields and at most one
// lower and one upper bound on the next field.
type Segment struct {
	Eq    []Value
	Lower *Bound
	Upper *Bound
}

// Position places key relative to the segment: -1 before it, 0 inside, 1 after it.
// A segment is a contiguous interval of the index order, so Position is monotone
// over sorted keys.
func (s Segment) Position(key IndexKey) int {
	for i, eq := range s.Eq {
		if i >= len(key) {
			return -1
		}
		if c := key[i].Compare(eq); c != 0 {
			return c
		}
	}
	if s.Lower == nil && s.Upper == nil {
		return 0
	}
	if len(key) <= len(s.Eq) {
		return -1
	}
	v := key[len(s.Eq)]
	if s.Lower != nil && !s.Lower.admits(v) {
		return -1
	}
	if s.Upper != nil && !s.Upper.admits(v) {
		return 1
	}
	return 0
}

func (s Segment) Contains(key IndexKey) bool {
	return s.Position(key) == 0
}

// String is Stringer implementation
func (s Segment) String() string {
	var sb strings.Builder
	sb.WriteString("eq")
	sb.WriteString(IndexKey(s.Eq).String())
	if s.Lower != nil {
		sb.WriteString(" " + s.Lower.String())
	}
	if s.Upper != nil {
		sb.WriteString(" " + s.Upper.String())
	}
	return sb.String()
}
