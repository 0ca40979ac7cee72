package storable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/Neumenon/storable/stream"
)

// Magic is the two-byte header of an nfreeze image: network byte order,
// format 2.7.
var Magic = [2]byte{0x05, 0x07}

const (
	// DefaultMaxDepth bounds record nesting.
	DefaultMaxDepth = 10000

	// maxPrealloc caps the capacity reserved from a count field before the
	// elements have actually been read.
	maxPrealloc = 1024
)

// Decoder reads nfreeze images from an input.
//
// Each call to Decode reads one image (header plus one value) with fresh
// object and class tables. A Decoder is not safe for concurrent use.
type Decoder struct {
	src  io.Reader
	data []byte

	cur    *stream.Cursor
	closer io.Closer

	maxDepth     int
	maxLength    int
	storableTags bool
	decompress   bool
	logger       *slog.Logger

	// Per-image state
	objects objectTable
	classes classTable
	depth   int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxDepth sets the maximum record nesting depth (default: 10000).
func WithMaxDepth(n int) Option {
	return func(d *Decoder) {
		d.maxDepth = n
	}
}

// WithMaxLength sets the maximum length of a single string (default: 256 MiB).
func WithMaxLength(n int) Option {
	return func(d *Decoder) {
		d.maxLength = n
	}
}

// WithStorableTags numbers objects exactly the way Perl's Storable does on
// retrieval: every ref, weak ref and overload record takes a slot of its own,
// and so do undef and the yes/no immortals. Use it for images whose
// back-references count those records.
func WithStorableTags() Option {
	return func(d *Decoder) {
		d.storableTags = true
	}
}

// WithDecompression unwraps gzip or zstd compressed input.
func WithDecompression() Option {
	return func(d *Decoder) {
		d.decompress = true
	}
}

// WithLogger traces every record at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = l
	}
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		src:       r,
		maxDepth:  DefaultMaxDepth,
		maxLength: stream.MaxLength,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newBytesDecoder(data []byte, opts ...Option) *Decoder {
	d := NewDecoder(nil, opts...)
	d.data = data
	return d
}

// Thaw decodes one nfreeze image held in memory.
func Thaw(data []byte, opts ...Option) (*Value, error) {
	d := newBytesDecoder(data, opts...)
	defer d.Close()
	return d.decodeImage()
}

// ThawReader decodes one nfreeze image read from r. Bytes after the image
// may have been buffered and are not returned to r.
func ThawReader(r io.Reader, opts ...Option) (*Value, error) {
	d := NewDecoder(r, opts...)
	defer d.Close()
	return d.decodeImage()
}

// Decode reads the next image. It returns io.EOF when the input ends cleanly
// before an image starts.
func (d *Decoder) Decode() (*Value, error) {
	if err := d.init(); err != nil {
		return nil, err
	}
	end, err := d.cur.AtEnd()
	if err != nil {
		return nil, d.fail(err, TagNone, d.cur.Offset())
	}
	if end {
		return nil, io.EOF
	}
	return d.decodeImage()
}

// Offset returns the number of input bytes consumed so far.
func (d *Decoder) Offset() int64 {
	if d.cur == nil {
		return 0
	}
	return d.cur.Offset()
}

// Close releases the decompressor, if any. It does not close the source.
func (d *Decoder) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

func (d *Decoder) init() error {
	if d.cur != nil {
		return nil
	}
	copts := []stream.CursorOption{stream.WithMaxLength(d.maxLength)}

	if d.decompress {
		src := d.src
		if src == nil {
			src = bytes.NewReader(d.data)
		}
		rc, kind, err := stream.Decompress(src)
		if err != nil {
			return &DecodeError{Err: err, Tag: TagNone, Index: -1}
		}
		if d.logger != nil {
			d.logger.Debug("input", slog.String("compression", kind.String()))
		}
		d.closer = rc
		d.cur = stream.NewCursor(rc, copts...)
		return nil
	}

	if d.src == nil {
		d.cur = stream.NewBytesCursor(d.data, copts...)
	} else {
		d.cur = stream.NewCursor(d.src, copts...)
	}
	return nil
}

func (d *Decoder) decodeImage() (*Value, error) {
	if err := d.init(); err != nil {
		return nil, err
	}

	d.objects = objectTable{}
	d.classes = classTable{}
	d.depth = 0
	defer func() {
		// Tables never outlive the call.
		d.objects = objectTable{}
		d.classes = classTable{}
	}()

	if err := d.readMagic(); err != nil {
		return nil, err
	}
	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (d *Decoder) readMagic() error {
	off := d.cur.Offset()
	var hdr [2]byte
	for i := range hdr {
		b, err := d.cur.ReadU8()
		if err != nil {
			if errors.Is(err, ErrUnexpectedEOF) {
				return &DecodeError{Err: fmt.Errorf("%w: short header", ErrUnsupportedFormat), Offset: off, Tag: TagNone, Index: -1}
			}
			return d.fail(err, TagNone, off)
		}
		hdr[i] = b
	}
	if hdr != Magic {
		return &DecodeError{Err: fmt.Errorf("%w: header %02x %02x", ErrUnsupportedFormat, hdr[0], hdr[1]), Offset: off, Tag: TagNone, Index: -1}
	}
	return nil
}

// ============================================================
// Record dispatch
// ============================================================

func (d *Decoder) readValue() (*Value, error) {
	off := d.cur.Offset()
	b, err := d.cur.ReadU8()
	if err != nil {
		return nil, d.fail(err, TagNone, off)
	}
	return d.readTagged(Tag(b), off)
}

// readTagged decodes the record whose tag byte, found at off, was already read.
func (d *Decoder) readTagged(tag Tag, off int64) (*Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.maxDepth {
		return nil, d.fail(ErrTooDeep, tag, off)
	}

	if d.logger != nil {
		d.logger.Debug("record",
			slog.String("tag", tag.String()),
			slog.Int64("offset", off),
			slog.Int("objects", d.objects.Len()),
			slog.Int("depth", d.depth))
	}

	switch tag {
	case TagScalar:
		return d.readScalar(tag, off, false)
	case TagLScalar:
		return d.readScalar(tag, off, true)
	case TagUTF8Str:
		return d.readText(tag, off, false)
	case TagLUTF8Str:
		return d.readText(tag, off, true)
	case TagByte:
		b, err := d.cur.ReadU8()
		if err != nil {
			return nil, d.fail(err, tag, off)
		}
		return d.remember(Integer(int32(b) - 128)), nil
	case TagNetint:
		n, err := d.cur.ReadI32()
		if err != nil {
			return nil, d.fail(err, tag, off)
		}
		return d.remember(Integer(n)), nil

	case TagArray:
		return d.readArray(tag, off)
	case TagHash:
		return d.readHash(tag, off)
	case TagFlagHash:
		return d.readFlagHash(tag, off)

	case TagRef, TagWeakRef:
		return d.readRef(tag, off)
	case TagOverload:
		if d.storableTags {
			return d.readRef(tag, off)
		}
		return d.readValue()
	case TagObject:
		return d.readObject(tag, off)

	case TagBless:
		return d.readBless(tag, off, false)
	case TagIxBless:
		return d.readBless(tag, off, true)
	case TagHook:
		return d.readHook(tag, off)

	case TagTiedArray, TagTiedHash, TagTiedScalar:
		return d.readTied()
	case TagCode:
		return d.readCode(tag, off)

	case TagSvYes:
		return d.immortal(True()), nil
	case TagSvNo:
		return d.immortal(False()), nil
	case TagUndef:
		if d.storableTags {
			// A plain undef scalar is an object of its own and may be blessed.
			return d.remember(&Value{kind: KindUndef}), nil
		}
		return Undef(), nil
	case TagSvUndef:
		return d.immortal(Undef()), nil

	case TagWeakOverload:
		return nil, d.fail(fmt.Errorf("%w: overloaded weak reference", ErrUnsupported), tag, off)
	default:
		return nil, d.fail(ErrUnknownTag, tag, off)
	}
}

// remember adds a newly constructed value to the object table.
func (d *Decoder) remember(v *Value) *Value {
	d.objects.Add(v)
	return v
}

// immortal returns one of the shared undef/yes/no values. Storable numbers
// them like any other object; plain decoding leaves them out of the table.
func (d *Decoder) immortal(v *Value) *Value {
	if d.storableTags {
		d.objects.Add(v)
	}
	return v
}

// ============================================================
// Scalars
// ============================================================

func (d *Decoder) readLen(tag Tag, off int64, large bool) (int, error) {
	if large {
		n, err := d.cur.ReadI32()
		if err != nil {
			return 0, d.fail(err, tag, off)
		}
		return int(n), nil
	}
	b, err := d.cur.ReadU8()
	if err != nil {
		return 0, d.fail(err, tag, off)
	}
	return int(b), nil
}

func (d *Decoder) readString(tag Tag, off int64, large bool) ([]byte, error) {
	n, err := d.readLen(tag, off, large)
	if err != nil {
		return nil, err
	}
	b, err := d.cur.ReadBytes(n)
	if err != nil {
		return nil, d.fail(err, tag, off)
	}
	return b, nil
}

func (d *Decoder) readScalar(tag Tag, off int64, large bool) (*Value, error) {
	b, err := d.readString(tag, off, large)
	if err != nil {
		return nil, err
	}
	return d.remember(Bytes(b)), nil
}

func (d *Decoder) readText(tag Tag, off int64, large bool) (*Value, error) {
	b, err := d.readString(tag, off, large)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, d.fail(ErrInvalidUTF8, tag, off)
	}
	return d.remember(Text(string(b))), nil
}

// ============================================================
// Containers
// ============================================================

func (d *Decoder) readCount(tag Tag, off int64) (int, error) {
	n, err := d.cur.ReadI32()
	if err != nil {
		return 0, d.fail(err, tag, off)
	}
	if n < 0 {
		return 0, d.fail(fmt.Errorf("%w: count %d", ErrBadLength, n), tag, off)
	}
	return int(n), nil
}

func (d *Decoder) readArray(tag Tag, off int64) (*Value, error) {
	n, err := d.readCount(tag, off)
	if err != nil {
		return nil, err
	}

	// The list takes its slot before its elements so they can point back at it.
	v := d.remember(&Value{kind: KindList, listVal: make([]*Value, 0, min(n, maxPrealloc))})
	for i := 0; i < n; i++ {
		elem, err := d.readValue()
		if err != nil {
			return nil, err
		}
		v.listVal = append(v.listVal, elem)
	}
	return v, nil
}

func (d *Decoder) newMap(frozen bool, n int) *Value {
	m := &Map{
		Frozen: frozen,
		index:  make(map[string]int, min(n, maxPrealloc)),
	}
	return d.remember(&Value{kind: KindMap, mapVal: m})
}

// readKey reads a hash key. On the wire a key is always a 32-bit length and
// the key bytes, never a scalar record, so keys are not objects and never
// take a table slot.
func (d *Decoder) readKey(tag Tag) ([]byte, error) {
	off := d.cur.Offset()
	return d.readString(tag, off, true)
}

func (d *Decoder) readHash(tag Tag, off int64) (*Value, error) {
	n, err := d.readCount(tag, off)
	if err != nil {
		return nil, err
	}

	v := d.newMap(false, n)
	for i := 0; i < n; i++ {
		// Value first, then key.
		val, err := d.readValue()
		if err != nil {
			return nil, err
		}
		key, err := d.readKey(tag)
		if err != nil {
			return nil, err
		}
		v.mapVal.Set(Bytes(key), val)
	}
	return v, nil
}

// readFlagHash decodes a hash whose entries each carry a key flag byte. The
// flag bits are tested one by one, so a key may be both UTF-8 and locked.
func (d *Decoder) readFlagHash(tag Tag, off int64) (*Value, error) {
	hflags, err := d.cur.ReadU8()
	if err != nil {
		return nil, d.fail(err, tag, off)
	}
	n, err := d.readCount(tag, off)
	if err != nil {
		return nil, err
	}

	v := d.newMap(hflags != 0, n)
	for i := 0; i < n; i++ {
		val, err := d.readValue()
		if err != nil {
			return nil, err
		}

		koff := d.cur.Offset()
		kflags, err := d.cur.ReadU8()
		if err != nil {
			return nil, d.fail(err, tag, koff)
		}

		var key *Value
		if kflags&keyIsSV != 0 {
			kv, err := d.readValue()
			if err != nil {
				return nil, err
			}
			key = keyFromValue(kv)
		} else {
			kb, err := d.readKey(tag)
			if err != nil {
				return nil, err
			}
			switch {
			case kflags&keyUTF8 != 0:
				if !utf8.Valid(kb) {
					return nil, d.fail(ErrInvalidUTF8, tag, koff)
				}
				key = Text(string(kb))
			case kflags&keyWasUTF8 != 0:
				key = Text(latin1ToUTF8(kb))
			default:
				key = Bytes(kb)
			}
		}

		// Deleted keys of a restricted hash carry no value.
		if kflags&keyPlaceholder != 0 {
			continue
		}
		v.mapVal.Set(key, val)
	}
	return v, nil
}

func keyFromValue(kv *Value) *Value {
	switch kv.Kind() {
	case KindBytes, KindText:
		return kv
	default:
		return Bytes([]byte(kv.String()))
	}
}

func latin1ToUTF8(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

// ============================================================
// References and blessing
// ============================================================

// readRef decodes a reference record. Pointing at a known object or blessing
// one does not create identity, so those nested records are forwarded
// without a slot; anything else gets a slot reserved before it is read.
func (d *Decoder) readRef(tag Tag, off int64) (*Value, error) {
	noff := d.cur.Offset()
	b, err := d.cur.ReadU8()
	if err != nil {
		return nil, d.fail(err, tag, off)
	}
	nested := Tag(b)

	if !d.storableTags {
		switch nested {
		case TagObject, TagBless, TagIxBless:
			return d.readTagged(nested, noff)
		}
	}

	i := d.objects.Reserve()
	v, err := d.readTagged(nested, noff)
	if err != nil {
		return nil, err
	}
	d.objects.Fill(i, v)
	return v, nil
}

func (d *Decoder) readObject(tag Tag, off int64) (*Value, error) {
	idx, err := d.cur.ReadI32()
	if err != nil {
		return nil, d.fail(err, tag, off)
	}
	v, err := d.objects.Get(int64(idx))
	if err != nil {
		return nil, d.failIndex(err, tag, off, int64(idx))
	}
	return v, nil
}

func (d *Decoder) readBless(tag Tag, off int64, indexed bool) (*Value, error) {
	n, err := d.cur.ReadLength()
	if err != nil {
		return nil, d.fail(err, tag, off)
	}

	var class string
	if indexed {
		class, err = d.classes.Get(int64(n))
		if err != nil {
			return nil, d.failIndex(err, tag, off, int64(n))
		}
	} else {
		b, err := d.cur.ReadBytes(n)
		if err != nil {
			return nil, d.fail(err, tag, off)
		}
		class = string(b)
		d.classes.Add(class)
	}

	v, err := d.readValue()
	if err != nil {
		return nil, err
	}
	// The class goes on the envelope the value already occupies.
	return Blessed(v, class), nil
}

// readHook decodes an object serialized by a STORABLE_freeze hook. Only the
// flat form (class name plus one frozen string) is supported. The class
// index or class name length is one byte unless hookLargeClass is set, in
// which case it is 32 bits; the payload length likewise follows
// hookLargeString.
func (d *Decoder) readHook(tag Tag, off int64) (*Value, error) {
	flags, err := d.cur.ReadU8()
	if err != nil {
		return nil, d.fail(err, tag, off)
	}
	switch {
	case flags&hookHasList != 0:
		return nil, d.fail(ErrUnsupportedHookList, tag, off)
	case flags&hookNeedRecurse != 0:
		return nil, d.fail(fmt.Errorf("%w: %s hook with recursive payload", ErrUnsupported, hookTypeName(flags)), tag, off)
	case flags&hookTypeMask == hookExtra:
		return nil, d.fail(fmt.Errorf("%w: %s hook", ErrUnsupported, hookTypeName(flags)), tag, off)
	}

	var class string
	if flags&hookIndexedClass != 0 {
		idx, err := d.readLen(tag, off, flags&hookLargeClass != 0)
		if err != nil {
			return nil, err
		}
		class, err = d.classes.Get(int64(idx))
		if err != nil {
			return nil, d.failIndex(err, tag, off, int64(idx))
		}
	} else {
		b, err := d.readString(tag, off, flags&hookLargeClass != 0)
		if err != nil {
			return nil, err
		}
		class = string(b)
		d.classes.Add(class)
	}

	payload, err := d.readString(tag, off, flags&hookLargeString != 0)
	if err != nil {
		return nil, err
	}
	return d.remember(Blessed(Bytes(payload), class)), nil
}

// ============================================================
// Tied values and code
// ============================================================

func (d *Decoder) readTied() (*Value, error) {
	// Tying creates identity: the wrapper takes a slot before its content.
	v := d.remember(&Value{kind: KindTied})
	inner, err := d.readValue()
	if err != nil {
		return nil, err
	}
	v.inner = inner
	return v, nil
}

func (d *Decoder) readCode(tag Tag, off int64) (*Value, error) {
	v := d.remember(&Value{kind: KindCode})
	src, err := d.readValue()
	if err != nil {
		return nil, err
	}
	switch src.Kind() {
	case KindBytes:
		v.bytesVal = src.bytesVal
	case KindText:
		v.bytesVal = []byte(src.strVal)
	default:
		return nil, d.fail(fmt.Errorf("%w: code source is %s", ErrUnsupported, src.Kind()), tag, off)
	}
	return v, nil
}

// ============================================================
// Errors
// ============================================================

// fail wraps err in a DecodeError for the record at off. Errors that are
// already DecodeErrors pass through unchanged.
func (d *Decoder) fail(err error, tag Tag, off int64) error {
	return d.failIndex(err, tag, off, -1)
}

func (d *Decoder) failIndex(err error, tag Tag, off int64, index int64) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}

	e := &DecodeError{Err: err, Offset: off, Tag: tag, Index: index}
	var re *stream.ReadError
	var le *stream.LengthError
	switch {
	case errors.As(err, &le):
		e.Offset = le.Offset
		e.Err = fmt.Errorf("%w: %d", ErrBadLength, le.Length)
	case errors.As(err, &re):
		e.Offset = re.Offset
		if errors.Is(re.Err, ErrUnexpectedEOF) {
			e.Err = ErrUnexpectedEOF
		}
	}
	return e
}
