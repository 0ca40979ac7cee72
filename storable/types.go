package storable

import (
	"fmt"
	"strconv"
)

// Kind represents the kind of a decoded value.
type Kind uint8

const (
	KindUndef Kind = iota
	KindBool
	KindBytes
	KindText
	KindInteger
	KindList
	KindMap
	KindCode
	KindTied
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUndef:
		return "undef"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindCode:
		return "code"
	case KindTied:
		return "tied"
	default:
		return "unknown"
	}
}

// Value is one node of a decoded graph. Identity matters: a back-reference in
// the stream yields the same *Value as the record it points at, so shared and
// cyclic structure can be detected with ==.
//
// Any kind may carry a class name, recording that the original was blessed.
type Value struct {
	kind Kind

	// Class tag
	class   string
	blessed bool

	// Scalar values (only one valid based on kind)
	boolVal  bool
	intVal   int32
	bytesVal []byte // Bytes and Code
	strVal   string

	// Container values
	listVal []*Value
	mapVal  *Map
	inner   *Value // Tied
}

// MapEntry is a key/value pair in a map.
type MapEntry struct {
	Key   *Value
	Value *Value
}

// Map holds the entries of a map value in insertion order.
type Map struct {
	Entries []MapEntry
	Frozen  bool // Restricted hash on the wire

	index map[string]int
}

// ============================================================
// Constructors
// ============================================================

var (
	undefValue = &Value{kind: KindUndef}
	trueValue  = &Value{kind: KindBool, boolVal: true}
	falseValue = &Value{kind: KindBool, boolVal: false}
)

// Undef returns the shared undef value.
func Undef() *Value {
	return undefValue
}

// True returns the shared true value.
func True() *Value {
	return trueValue
}

// False returns the shared false value.
func False() *Value {
	return falseValue
}

// Bool returns the shared value for b.
func Bool(b bool) *Value {
	if b {
		return trueValue
	}
	return falseValue
}

// Bytes creates a binary string value.
func Bytes(v []byte) *Value {
	return &Value{kind: KindBytes, bytesVal: v}
}

// Text creates a UTF-8 string value.
func Text(v string) *Value {
	return &Value{kind: KindText, strVal: v}
}

// Integer creates an integer value.
func Integer(v int32) *Value {
	return &Value{kind: KindInteger, intVal: v}
}

// List creates a list value.
func List(values ...*Value) *Value {
	if values == nil {
		values = []*Value{}
	}
	return &Value{kind: KindList, listVal: values}
}

// NewMap creates a map value. Later entries overwrite earlier ones with the
// same key.
func NewMap(entries ...MapEntry) *Value {
	v := &Value{kind: KindMap, mapVal: &Map{}}
	for _, e := range entries {
		v.mapVal.Set(e.Key, e.Value)
	}
	return v
}

// Code creates a captured source code value.
func Code(src []byte) *Value {
	return &Value{kind: KindCode, bytesVal: src}
}

// Tied wraps inner as a tied value.
func Tied(inner *Value) *Value {
	return &Value{kind: KindTied, inner: inner}
}

// Blessed returns v with its class set to class. Shared singletons are
// copied first so blessing one never changes the others.
func Blessed(v *Value, class string) *Value {
	if v.isShared() {
		cp := *v
		v = &cp
	}
	v.class = class
	v.blessed = true
	return v
}

func (v *Value) isShared() bool {
	return v == undefValue || v == trueValue || v == falseValue
}

// ============================================================
// Accessors
// ============================================================

// Kind returns the value kind.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindUndef
	}
	return v.kind
}

// IsUndef returns true if this is an undef value.
func (v *Value) IsUndef() bool {
	return v == nil || v.kind == KindUndef
}

// Class returns the class name the value was blessed into.
func (v *Value) Class() (string, bool) {
	if v == nil {
		return "", false
	}
	return v.class, v.blessed
}

// IsBlessed reports whether the value carries a class name.
func (v *Value) IsBlessed() bool {
	return v != nil && v.blessed
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, error) {
	if err := v.expect(KindBool); err != nil {
		return false, err
	}
	return v.boolVal, nil
}

// AsInt returns the integer value.
func (v *Value) AsInt() (int32, error) {
	if err := v.expect(KindInteger); err != nil {
		return 0, err
	}
	return v.intVal, nil
}

// AsBytes returns the raw bytes of a Bytes value.
func (v *Value) AsBytes() ([]byte, error) {
	if err := v.expect(KindBytes); err != nil {
		return nil, err
	}
	return v.bytesVal, nil
}

// AsText returns the string of a Text value.
func (v *Value) AsText() (string, error) {
	if err := v.expect(KindText); err != nil {
		return "", err
	}
	return v.strVal, nil
}

// AsCode returns the captured source of a Code value.
func (v *Value) AsCode() ([]byte, error) {
	if err := v.expect(KindCode); err != nil {
		return nil, err
	}
	return v.bytesVal, nil
}

// AsList returns the list elements.
func (v *Value) AsList() ([]*Value, error) {
	if err := v.expect(KindList); err != nil {
		return nil, err
	}
	return v.listVal, nil
}

// AsMap returns the map.
func (v *Value) AsMap() (*Map, error) {
	if err := v.expect(KindMap); err != nil {
		return nil, err
	}
	return v.mapVal, nil
}

// Inner returns the value wrapped by a tied value, or nil.
func (v *Value) Inner() *Value {
	if v == nil || v.kind != KindTied {
		return nil
	}
	return v.inner
}

// Frozen reports whether a map came from a restricted hash.
func (v *Value) Frozen() bool {
	return v != nil && v.kind == KindMap && v.mapVal.Frozen
}

// String returns the content of a scalar as a string: the bytes of Bytes and
// Code, the text of Text, the decimal form of Integer, "1" or "" for Bool.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.kind {
	case KindBytes, KindCode:
		return string(v.bytesVal)
	case KindText:
		return v.strVal
	case KindInteger:
		return strconv.Itoa(int(v.intVal))
	case KindBool:
		if v.boolVal {
			return "1"
		}
		return ""
	case KindList, KindMap, KindTied:
		return fmt.Sprintf("%s(%p)", v.kind, v)
	default:
		return ""
	}
}

// Len returns the length of a list or map.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case KindList:
		return len(v.listVal)
	case KindMap:
		return len(v.mapVal.Entries)
	default:
		return 0
	}
}

// Index returns the i-th element of a list.
func (v *Value) Index(i int) (*Value, error) {
	if v == nil || v.kind != KindList {
		return nil, fmt.Errorf("storable: not a list")
	}
	if i < 0 || i >= len(v.listVal) {
		return nil, fmt.Errorf("storable: index %d out of bounds (len=%d)", i, len(v.listVal))
	}
	return v.listVal[i], nil
}

// Get returns the value stored under key in a map, or nil.
func (v *Value) Get(key string) *Value {
	if v == nil || v.kind != KindMap {
		return nil
	}
	return v.mapVal.Get(key)
}

func (v *Value) expect(k Kind) error {
	if v == nil {
		return fmt.Errorf("storable: nil value")
	}
	if v.kind != k {
		return fmt.Errorf("storable: expected %s, got %s", k, v.kind)
	}
	return nil
}

// ============================================================
// Map
// ============================================================

// Get returns the value stored under key, or nil.
func (m *Map) Get(key string) *Value {
	if i, ok := m.lookup(key); ok {
		return m.Entries[i].Value
	}
	return nil
}

// Set stores val under key. An existing entry keeps its position and takes
// the new value.
func (m *Map) Set(key, val *Value) {
	k := key.String()
	if i, ok := m.lookup(k); ok {
		m.Entries[i].Value = val
		return
	}
	m.index[k] = len(m.Entries)
	m.Entries = append(m.Entries, MapEntry{Key: key, Value: val})
}

// Keys returns the map keys as strings in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		keys[i] = e.Key.String()
	}
	return keys
}

func (m *Map) lookup(key string) (int, bool) {
	// Maps built by hand (Map{Entries: ...}) have no index yet.
	if m.index == nil {
		m.index = make(map[string]int, len(m.Entries))
		for i, e := range m.Entries {
			m.index[e.Key.String()] = i
		}
	}
	i, ok := m.index[key]
	return i, ok
}
