package storable

import (
	"bytes"
	"strconv"
	"testing"
)

// ============================================================
// Decode Benchmarks
// ============================================================
//
// Run with:
//   go test -bench=BenchmarkThaw -benchmem ./storable/

// wideImage builds a hash of n blessed records, each holding a list of
// scalars and a back-reference to a shared list.
func wideImage(n int) []byte {
	shared := array(scalar("shared"))
	pairs := [][]byte{shared, key("shared")}
	for i := 0; i < n; i++ {
		rec := bless("Rec", hash(
			netint(int32(i)), key("id"),
			scalar("name-"+strconv.Itoa(i)), key("name"),
			array(sbyte(0x81), sbyte(0x82), utf8str("ü")), key("tags"),
			obj(1), key("shared"),
		))
		pairs = append(pairs, rec, key("k"+strconv.Itoa(i)))
	}
	return img(hash(pairs...))
}

func deepImage(depth int) []byte {
	v := scalar("leaf")
	for i := 0; i < depth; i++ {
		v = array(v)
	}
	return img(v)
}

func BenchmarkThaw_Scalar(b *testing.B) {
	data := img(scalar("hello world"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Thaw(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkThaw_Wide(b *testing.B) {
	data := wideImage(1000)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Thaw(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkThaw_Deep(b *testing.B) {
	data := deepImage(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Thaw(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkThawReader_Wide(b *testing.B) {
	data := wideImage(1000)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ThawReader(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkToJSON_Wide(b *testing.B) {
	v, err := Thaw(wideImage(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ToJSON(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkToYAML_Wide(b *testing.B) {
	v, err := Thaw(wideImage(1000))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ToYAML(v); err != nil {
			b.Fatal(err)
		}
	}
}
