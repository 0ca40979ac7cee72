package storable

import "encoding/binary"

// Helpers that assemble nfreeze images by hand.

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func img(records ...[]byte) []byte {
	return cat(append([][]byte{Magic[:]}, records...)...)
}

func tag(t Tag) []byte {
	return []byte{byte(t)}
}

func be32(n int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	return b[:]
}

func scalar(s string) []byte {
	return cat([]byte{byte(TagScalar), byte(len(s))}, []byte(s))
}

func lscalar(s string) []byte {
	return cat(tag(TagLScalar), be32(int32(len(s))), []byte(s))
}

func utf8str(s string) []byte {
	return cat([]byte{byte(TagUTF8Str), byte(len(s))}, []byte(s))
}

func netint(n int32) []byte {
	return cat(tag(TagNetint), be32(n))
}

func sbyte(b byte) []byte {
	return []byte{byte(TagByte), b}
}

func obj(i int32) []byte {
	return cat(tag(TagObject), be32(i))
}

func ref(v []byte) []byte {
	return cat(tag(TagRef), v)
}

func key(s string) []byte {
	return cat(be32(int32(len(s))), []byte(s))
}

func array(elems ...[]byte) []byte {
	return cat(append([][]byte{tag(TagArray), be32(int32(len(elems)))}, elems...)...)
}

// hash takes value/key pairs: hash(v1, key("a"), v2, key("b")).
func hash(pairs ...[]byte) []byte {
	return cat(append([][]byte{tag(TagHash), be32(int32(len(pairs) / 2))}, pairs...)...)
}

func bless(class string, v []byte) []byte {
	return cat([]byte{byte(TagBless), byte(len(class))}, []byte(class), v)
}

func ixbless(i byte, v []byte) []byte {
	return cat([]byte{byte(TagIxBless), i}, v)
}
