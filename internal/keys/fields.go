package keys

import (
	"fmt"
	"strings"
)

const (
	FieldCreationTime = "_creationTime"
	FieldID           = "_id"
)

// Fielder is anything a key can be extracted from
type Fielder interface {
	Field(name string) (Value, bool)
}

// Field one column of a composite index
type Field struct {
	Name string
	Kind Kind
}

func (f Field) String() string {
	return f.Name + ":" + f.Kind.String()
}

// FieldList defines a total order over records
type FieldList []Field

// DefaultFields orders by creation sequence then record identity
func DefaultFields() FieldList {
	return FieldList{
		{Name: FieldCreationTime, Kind: KindInt},
		{Name: FieldID, Kind: KindString},
	}
}

// ParseFieldList parses "name:kind,name:kind"; an empty string gives DefaultFields
func ParseFieldList(s string) (FieldList, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultFields(), nil
	}

	var fl FieldList
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name, kindName, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: bad field %q, want name:kind", ErrValidation, part)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrValidation, name)
		}
		seen[name] = true

		kind, err := ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		fl = append(fl, Field{Name: name, Kind: kind})
	}
	return fl, nil
}

func (fl FieldList) String() string {
	parts := make([]string, len(fl))
	for i, f := range fl {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// Unique reports whether the list ends in the record identity, which makes keys unique
func (fl FieldList) Unique() bool {
	for _, f := range fl {
		if f.Name == FieldID {
			return true
		}
	}
	return false
}

// KeyOf extracts the index key of a record
func (fl FieldList) KeyOf(rec Fielder) (IndexKey, error) {
	key := make(IndexKey, len(fl))
	for i, f := range fl {
		v, ok := rec.Field(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w: record has no field %q", ErrValidation, f.Name)
		}
		if v.Kind() != f.Kind {
			return nil, fmt.Errorf("%w: field %q is %s, index wants %s", ErrValidation, f.Name, v.Kind(), f.Kind)
		}
		key[i] = v
	}
	return key, nil
}

// Validate checks that key is either the unbounded sentinel or a full key
// whose kinds match the list
func (fl FieldList) Validate(key IndexKey) error {
	if len(key) == 0 {
		return nil
	}
	if len(key) != len(fl) {
		return fmt.Errorf("%w: key %s has %d fields, index has %d", ErrValidation, key, len(key), len(fl))
	}
	for i, f := range fl {
		if key[i].Kind() != f.Kind {
			return fmt.Errorf("%w: key field %q is %s, index wants %s", ErrValidation, f.Name, key[i].Kind(), f.Kind)
		}
	}
	return nil
}
