package keys

import (
	"errors"
	"strings"
)

var (
	ErrValidation = errors.New("validation error")
)

// IndexKey the position of a record in a composite index.
// The empty key is the unbounded sentinel and is never a real key.
type IndexKey []Value

type CompareResult int

const (
	KeyLessThan CompareResult = -1
	KeyEqual    CompareResult = 0
	KeyMoreThan CompareResult = 1
)

// Compare keys lexicographically, a shorter key sorts before its extensions
func (k IndexKey) Compare(o IndexKey) CompareResult {
	n := len(k)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if c := k[i].Compare(o[i]); c != 0 {
			return CompareResult(c)
		}
	}
	switch {
	case len(k) < len(o):
		return KeyLessThan
	case len(k) > len(o):
		return KeyMoreThan
	}
	return KeyEqual
}

func (k IndexKey) Equal(o IndexKey) bool {
	return len(k) == len(o) && k.Compare(o) == KeyEqual
}

// IsUnbounded reports the empty sentinel
func (k IndexKey) IsUnbounded() bool {
	return len(k) == 0
}

// Clone returns a copy that does not share the backing array
func (k IndexKey) Clone() IndexKey {
	if k == nil {
		return nil
	}
	c := make(IndexKey, len(k))
	copy(c, k)
	return c
}

// String is Stringer implementation
func (k IndexKey) String() string {
	if len(k) == 0 {
		return "[]"
	}
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// commonPrefix returns the number of leading fields a and b share
func commonPrefix(a, b IndexKey) int {
	i := 0
	for i < len(a) && i < len(b) && a[i].Equal(b[i]) {
		i++
	}
	return i
}
