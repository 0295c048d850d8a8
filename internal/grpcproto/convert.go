package grpcproto

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/record"
)

// Range request and response field names
const (
	RangeStart      = "start"
	RangeEnd        = "end"
	RangeDescending = "descending"
	RangeMaxRows    = "max_rows"
	RangeDocuments  = "documents"
	RangeHasMore    = "has_more"
	RangeCursor     = "cursor"
)

// maxExactInt is the largest integer a float64 number value holds exactly
const maxExactInt = 1 << 53

// EncodeCursor makes an index key printable, the unbounded key is ""
func EncodeCursor(key keys.IndexKey) string {
	if key.IsUnbounded() {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(keys.EncodeKey(key))
}

func DecodeCursor(s string) (keys.IndexKey, error) {
	if s == "" {
		return keys.IndexKey{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor: %v", keys.ErrValidation, err)
	}
	return keys.DecodeKey(b)
}

// ValueOf converts a key value; ints beyond float64 precision travel as decimal strings
func ValueOf(v keys.Value) (*structpb.Value, error) {
	switch v.Kind() {
	case keys.KindBool:
		return structpb.NewBoolValue(v.AsBool()), nil
	case keys.KindInt:
		if i := v.AsInt(); i > maxExactInt || i < -maxExactInt {
			return structpb.NewStringValue(strconv.FormatInt(i, 10)), nil
		}
		return structpb.NewNumberValue(float64(v.AsInt())), nil
	case keys.KindFloat:
		return structpb.NewNumberValue(v.AsFloat()), nil
	case keys.KindString:
		return structpb.NewStringValue(v.AsString()), nil
	}
	return nil, fmt.Errorf("%w: value of kind %s", keys.ErrValidation, v.Kind())
}

// FromValue converts a wire value into want; KindInvalid guesses the kind from the value
func FromValue(pv *structpb.Value, want keys.Kind) (keys.Value, error) {
	switch x := pv.GetKind().(type) {
	case *structpb.Value_BoolValue:
		if want == keys.KindInvalid || want == keys.KindBool {
			return keys.Bool(x.BoolValue), nil
		}
	case *structpb.Value_StringValue:
		switch want {
		case keys.KindInvalid, keys.KindString:
			return keys.String(x.StringValue), nil
		case keys.KindInt:
			i, err := strconv.ParseInt(x.StringValue, 10, 64)
			if err != nil {
				return keys.Value{}, fmt.Errorf("%w: %q is not an int", keys.ErrValidation, x.StringValue)
			}
			return keys.Int(i), nil
		}
	case *structpb.Value_NumberValue:
		n := x.NumberValue
		switch want {
		case keys.KindFloat:
			return keys.Float(n), nil
		case keys.KindInt:
			if n != math.Trunc(n) || math.Abs(n) > maxExactInt {
				return keys.Value{}, fmt.Errorf("%w: %v is not an int", keys.ErrValidation, n)
			}
			return keys.Int(int64(n)), nil
		case keys.KindInvalid:
			if n == math.Trunc(n) && math.Abs(n) <= maxExactInt {
				return keys.Int(int64(n)), nil
			}
			return keys.Float(n), nil
		}
	default:
		return keys.Value{}, fmt.Errorf("%w: unsupported value %v", keys.ErrValidation, pv)
	}
	return keys.Value{}, fmt.Errorf("%w: %v is not %s", keys.ErrValidation, pv, want)
}

// FieldsFromStruct converts an insert payload, index fields are coerced to their kind
func FieldsFromStruct(s *structpb.Struct, fl keys.FieldList) (map[string]keys.Value, error) {
	kinds := make(map[string]keys.Kind, len(fl))
	for _, f := range fl {
		kinds[f.Name] = f.Kind
	}

	out := make(map[string]keys.Value, len(s.GetFields()))
	for name, pv := range s.GetFields() {
		v, err := FromValue(pv, kinds[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// DocumentToStruct puts _id and _creationTime beside the user fields; _creationTime is a decimal string
func DocumentToStruct(doc *record.Document) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(doc.Fields)+2)}
	for name, v := range doc.Fields {
		pv, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out.Fields[name] = pv
	}
	out.Fields[keys.FieldID] = structpb.NewStringValue(doc.ID)
	out.Fields[keys.FieldCreationTime] = structpb.NewStringValue(strconv.FormatInt(doc.CreationTime, 10))
	return out, nil
}

func DocumentFromStruct(s *structpb.Struct, fl keys.FieldList) (*record.Document, error) {
	fields, err := FieldsFromStruct(s, fl)
	if err != nil {
		return nil, err
	}

	id, ok := fields[keys.FieldID]
	if !ok || id.Kind() != keys.KindString {
		return nil, fmt.Errorf("%w: document without %s", keys.ErrValidation, keys.FieldID)
	}
	delete(fields, keys.FieldID)

	ct, err := FromValue(s.GetFields()[keys.FieldCreationTime], keys.KindInt)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", keys.FieldCreationTime, err)
	}
	delete(fields, keys.FieldCreationTime)

	return &record.Document{
		ID:           id.AsString(),
		CreationTime: ct.AsInt(),
		Fields:       fields,
	}, nil
}

func DocumentsToList(docs []*record.Document) (*structpb.ListValue, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(docs))}
	for _, doc := range docs {
		s, err := DocumentToStruct(doc)
		if err != nil {
			return nil, err
		}
		list.Values = append(list.Values, structpb.NewStructValue(s))
	}
	return list, nil
}

func DocumentsFromList(list *structpb.ListValue, fl keys.FieldList) ([]*record.Document, error) {
	docs := make([]*record.Document, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: item %d is not a document", keys.ErrValidation, i)
		}
		doc, err := DocumentFromStruct(s, fl)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// RangeRequestToStruct encodes a range read
func RangeRequestToStruct(req paging.Request) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		RangeStart:      structpb.NewStringValue(EncodeCursor(req.Start)),
		RangeEnd:        structpb.NewStringValue(EncodeCursor(req.End)),
		RangeDescending: structpb.NewBoolValue(req.Direction == keys.Descending),
		RangeMaxRows:    structpb.NewNumberValue(float64(req.MaxRows)),
	}}
}

func RangeRequestFromStruct(s *structpb.Struct) (paging.Request, error) {
	var req paging.Request
	f := s.GetFields()

	var err error
	if req.Start, err = DecodeCursor(f[RangeStart].GetStringValue()); err != nil {
		return req, fmt.Errorf("start: %w", err)
	}
	if req.End, err = DecodeCursor(f[RangeEnd].GetStringValue()); err != nil {
		return req, fmt.Errorf("end: %w", err)
	}
	req.Direction = keys.Ascending
	if f[RangeDescending].GetBoolValue() {
		req.Direction = keys.Descending
	}
	if pv, ok := f[RangeMaxRows]; ok {
		n, err := FromValue(pv, keys.KindInt)
		if err != nil {
			return req, fmt.Errorf("max_rows: %w", err)
		}
		req.MaxRows = int(n.AsInt())
	}
	return req, nil
}

// PageToStruct encodes a range result; cursor is the key of the last document
func PageToStruct(page *paging.Page) (*structpb.Struct, error) {
	list, err := DocumentsToList(page.Documents)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		RangeDocuments: structpb.NewListValue(list),
		RangeHasMore:   structpb.NewBoolValue(page.HasMore),
		RangeCursor:    structpb.NewStringValue(EncodeCursor(page.Last)),
	}}, nil
}

func PageFromStruct(s *structpb.Struct, fl keys.FieldList) (*paging.Page, error) {
	f := s.GetFields()
	docs, err := DocumentsFromList(f[RangeDocuments].GetListValue(), fl)
	if err != nil {
		return nil, err
	}
	last, err := DecodeCursor(f[RangeCursor].GetStringValue())
	if err != nil {
		return nil, err
	}
	return &paging.Page{
		Documents: docs,
		HasMore:   f[RangeHasMore].GetBoolValue(),
		Last:      last,
	}, nil
}
