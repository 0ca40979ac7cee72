package storable

import "fmt"

// Tag is a record type byte of the Storable wire format.
type Tag int

// TagNone marks errors that are not tied to a record.
const TagNone Tag = -1

// Record tags as written by Storable's nfreeze.
const (
	TagObject       Tag = 0  // Back-reference to an already stored object
	TagLScalar      Tag = 1  // Binary scalar, 32-bit length
	TagArray        Tag = 2  // Array: count, items
	TagHash         Tag = 3  // Hash: count, value/key pairs
	TagRef          Tag = 4  // Reference to the following object
	TagUndef        Tag = 5  // Undefined scalar
	TagInteger      Tag = 6  // Native integer (not used by nfreeze)
	TagDouble       Tag = 7  // Native double (not used by nfreeze)
	TagByte         Tag = 8  // Signed byte, biased by 128
	TagNetint       Tag = 9  // 32-bit network order integer
	TagScalar       Tag = 10 // Binary scalar, 8-bit length
	TagTiedArray    Tag = 11 // Tied array
	TagTiedHash     Tag = 12 // Tied hash
	TagTiedScalar   Tag = 13 // Tied scalar
	TagSvUndef      Tag = 14 // Immortal undef
	TagSvYes        Tag = 15 // Immortal true
	TagSvNo         Tag = 16 // Immortal false
	TagBless        Tag = 17 // Blessed object, class name inline
	TagIxBless      Tag = 18 // Blessed object, class name by index
	TagHook         Tag = 19 // Object stored by a STORABLE_freeze hook
	TagOverload     Tag = 20 // Overloaded reference
	TagTiedKey      Tag = 21 // Tied hash element
	TagTiedIdx      Tag = 22 // Tied array element
	TagUTF8Str      Tag = 23 // UTF-8 string, 8-bit length
	TagLUTF8Str     Tag = 24 // UTF-8 string, 32-bit length
	TagFlagHash     Tag = 25 // Hash with flags
	TagCode         Tag = 26 // Code reference as source text
	TagWeakRef      Tag = 27 // Weak reference
	TagWeakOverload Tag = 28 // Overloaded weak reference
	TagError        Tag = 29 // Error marker
)

var tagNames = [...]string{
	TagObject:       "object",
	TagLScalar:      "large scalar",
	TagArray:        "array",
	TagHash:         "hash",
	TagRef:          "ref",
	TagUndef:        "undef",
	TagInteger:      "native integer",
	TagDouble:       "native double",
	TagByte:         "byte",
	TagNetint:       "network integer",
	TagScalar:       "scalar",
	TagTiedArray:    "tied array",
	TagTiedHash:     "tied hash",
	TagTiedScalar:   "tied scalar",
	TagSvUndef:      "immortal undef",
	TagSvYes:        "yes",
	TagSvNo:         "no",
	TagBless:        "bless",
	TagIxBless:      "indexed bless",
	TagHook:         "hook",
	TagOverload:     "overload",
	TagTiedKey:      "tied key",
	TagTiedIdx:      "tied index",
	TagUTF8Str:      "utf8 string",
	TagLUTF8Str:     "large utf8 string",
	TagFlagHash:     "flag hash",
	TagCode:         "code",
	TagWeakRef:      "weak ref",
	TagWeakOverload: "weak overload",
	TagError:        "error",
}

// String returns the tag name.
func (t Tag) String() string {
	if t >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Hook record flags.
const (
	hookTypeMask     = 0x03
	hookLargeClass   = 0x04
	hookLargeString  = 0x08
	hookIndexedClass = 0x20
	hookNeedRecurse  = 0x40
	hookHasList      = 0x80
)

// Hook object types (flags & hookTypeMask).
const (
	hookScalar = 0
	hookArray  = 1
	hookHash   = 2
	hookExtra  = 3
)

// hookTypeName names the kind of object a hook record carries.
func hookTypeName(flags byte) string {
	switch flags & hookTypeMask {
	case hookScalar:
		return "scalar"
	case hookArray:
		return "array"
	case hookHash:
		return "hash"
	default:
		return "tied object"
	}
}

// Per-key flags of a flag hash entry.
const (
	keyUTF8        = 0x01
	keyWasUTF8     = 0x02
	keyLocked      = 0x04
	keyIsSV        = 0x08
	keyPlaceholder = 0x10
)
