// Package sanitize holds the pure request-sanitization engine: a JSON value model,
// the SQL-injection pattern guard, the XSS allow-list sanitizer and the output encoder.
package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// MaxDepth bounds container nesting accepted by FromJSON.
const MaxDepth = 256

var ErrTooDeep = errors.New("sanitize: value nesting exceeds maximum depth")

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON-shaped tagged union. Every variant dispatches to exactly one
// Visitor method, so adding a variant breaks every traversal at compile time.
type Value interface {
	json.Marshaler
	Kind() Kind
	Accept(v Visitor) (Value, error)
}

// Visitor transforms a Value. Implementations return the replacement value.
type Visitor interface {
	VisitNull() (Value, error)
	VisitBool(b Bool) (Value, error)
	VisitNumber(n Number) (Value, error)
	VisitString(s String) (Value, error)
	VisitArray(a Array) (Value, error)
	VisitObject(o *Object) (Value, error)
}

type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) Accept(v Visitor) (Value, error) { return v.VisitNull() }
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (b Bool) Accept(v Visitor) (Value, error) { return v.VisitBool(b) }
func (b Bool) MarshalJSON() ([]byte, error) { return json.Marshal(bool(b)) }

// Number keeps the literal text of a JSON number so large integers survive.
type Number string

func (Number) Kind() Kind { return KindNumber }
func (n Number) Accept(v Visitor) (Value, error) { return v.VisitNumber(n) }
func (n Number) MarshalJSON() ([]byte, error) { return json.Marshal(json.Number(n)) }

type String string

func (String) Kind() Kind { return KindString }
func (s String) Accept(v Visitor) (Value, error) { return v.VisitString(s) }
func (s String) MarshalJSON() ([]byte, error) { return json.Marshal(string(s)) }

type Array []Value

func (Array) Kind() Kind { return KindArray }
func (a Array) Accept(v Visitor) (Value, error) { return v.VisitArray(a) }

func (a Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalItem(item)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Object is a JSON object that remembers key insertion order.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

func (*Object) Kind() Kind { return KindObject }
func (o *Object) Accept(v Visitor) (Value, error) { return v.VisitObject(o) }

// Set adds or replaces key. A replaced key keeps its original position.
func (o *Object) Set(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

func (o *Object) Len() int { return len(o.keys) }

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalItem(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalItem(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}

// StringOf returns the string held by v, if v is a String.
func StringOf(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// FromJSON decodes a single JSON document into a Value, preserving object key order
// and number literals.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sanitize: unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		if depth >= MaxDepth {
			return nil, ErrTooDeep
		}
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("sanitize: decode: %w", err)
			}
			return arr, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("sanitize: decode: %w", err)
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("sanitize: object key is %T, not string", kt)
				}
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("sanitize: decode: %w", err)
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("sanitize: unexpected token %v", tok)
}
