package storable

import (
	"strings"
	"testing"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUndef, "undef"},
		{KindBool, "bool"},
		{KindBytes, "bytes"},
		{KindText, "text"},
		{KindInteger, "integer"},
		{KindList, "list"},
		{KindMap, "map"},
		{KindCode, "code"},
		{KindTied, "tied"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestTag_String(t *testing.T) {
	if got := TagFlagHash.String(); got != "flag hash" {
		t.Errorf("got %q", got)
	}
	if got := Tag(42).String(); got != "unknown(42)" {
		t.Errorf("got %q", got)
	}
}

func TestValue_Accessors(t *testing.T) {
	if _, err := Integer(1).AsText(); err == nil {
		t.Error("AsText on integer should fail")
	}
	if _, err := (*Value)(nil).AsInt(); err == nil {
		t.Error("AsInt on nil should fail")
	}
	if !(*Value)(nil).IsUndef() {
		t.Error("nil should be undef")
	}

	l := List(Integer(1), Text("two"))
	if l.Len() != 2 {
		t.Errorf("len = %d", l.Len())
	}
	if _, err := l.Index(2); err == nil {
		t.Error("Index out of range should fail")
	}
	if v, _ := l.Index(1); v.String() != "two" {
		t.Errorf("Index(1) = %q", v.String())
	}

	tied := Tied(l)
	if tied.Inner() != l {
		t.Error("Inner should return the wrapped value")
	}
	if l.Inner() != nil {
		t.Error("Inner of a list should be nil")
	}

	if got := List().String(); !strings.HasPrefix(got, "list(") {
		t.Errorf("list String = %q", got)
	}
}

func TestBlessed(t *testing.T) {
	l := List()
	if Blessed(l, "Foo") != l {
		t.Error("blessing a list should keep its identity")
	}
	if class, ok := l.Class(); !ok || class != "Foo" {
		t.Errorf("class = %q (%v)", class, ok)
	}

	u := Blessed(Undef(), "Bar")
	if u == Undef() {
		t.Error("blessing undef should copy the shared value")
	}
	if Undef().IsBlessed() {
		t.Error("shared undef must stay unblessed")
	}
	if !u.IsUndef() {
		t.Error("blessed undef is still undef")
	}

	// Blessing with an empty name still marks the value.
	if !Blessed(Integer(1), "").IsBlessed() {
		t.Error("expected blessed value")
	}
}

func TestMap_LastWriteWins(t *testing.T) {
	v := NewMap(
		MapEntry{Key: Bytes([]byte("a")), Value: Integer(1)},
		MapEntry{Key: Text("b"), Value: Integer(2)},
		MapEntry{Key: Text("a"), Value: Integer(3)},
	)
	m, _ := v.AsMap()
	if got := strings.Join(m.Keys(), ","); got != "a,b" {
		t.Errorf("keys = %s, want a,b", got)
	}
	if n, _ := v.Get("a").AsInt(); n != 3 {
		t.Errorf("a = %d, want 3", n)
	}
	if v.Get("missing") != nil {
		t.Error("missing key should yield nil")
	}
}

func TestMap_HandBuilt(t *testing.T) {
	m := &Map{Entries: []MapEntry{{Key: Text("k"), Value: Integer(1)}}}
	if m.Get("k") == nil {
		t.Fatal("lookup on a hand-built map failed")
	}
	m.Set(Text("k"), Integer(2))
	m.Set(Text("z"), Integer(3))
	if len(m.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(m.Entries))
	}
	if n, _ := m.Get("k").AsInt(); n != 2 {
		t.Errorf("k = %d, want 2", n)
	}
}
