// Package storable decodes images written by Perl's Storable nfreeze.
//
// An nfreeze image is a two-byte header (0x05 0x07) followed by one value
// record. Records are tagged; compound records contain further records, and
// a back-reference record points at any object already read, so the result
// is a graph that may share nodes and contain cycles.
//
// # Data Model
//
// Every node is a *Value. Identity is significant: two positions that refer
// to the same Perl object hold the same pointer.
//
// Scalars: undef, bool, bytes, text, integer
// Containers: list, map (ordered, last write wins)
// Special: code (source text, never run), tied (wraps the tie object)
//
// Any value may carry a class name from a bless record.
//
// # Decoding
//
//	v, err := storable.Thaw(data)
//	if err != nil {
//	    var de *storable.DecodeError
//	    if errors.As(err, &de) {
//	        log.Printf("bad record at offset %d", de.Offset)
//	    }
//	}
//
// A Decoder reads several concatenated images from one reader:
//
//	dec := storable.NewDecoder(r, storable.WithDecompression())
//	defer dec.Close()
//	for {
//	    v, err := dec.Decode()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
//
// # Object Numbering
//
// Back-references count objects in order of first appearance. By default a
// reference record only takes a slot when it does not point at a known or
// freshly blessed object, and undef/true/false never take one.
// WithStorableTags switches to the numbering Perl's own retrieve uses.
//
// # Output
//
// ToJSON and ToYAML render a graph for inspection. JSON cannot express
// sharing, so ToJSON copies shared nodes and rejects cycles with ErrCycle.
// YAML keeps both through anchors and aliases.
package storable
