package storable

import (
	"errors"
	"fmt"
	"io"
)

// Decode errors. Every error returned by the decoder is a *DecodeError whose
// Err is one of these (possibly wrapped), so callers can use errors.Is.
var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrUnexpectedEOF       = io.ErrUnexpectedEOF
	ErrUnknownTag          = errors.New("unknown tag")
	ErrBadBackReference    = errors.New("back-reference out of range")
	ErrBadClassIndex       = errors.New("class index out of range")
	ErrUnsupportedHookList = errors.New("hook with a list payload is not supported")
	ErrInvalidUTF8         = errors.New("invalid UTF-8 in string")
	ErrUnsupported         = errors.New("unsupported record")
	ErrBadLength           = errors.New("bad length")
	ErrTooDeep             = errors.New("nesting too deep")
)

// ErrCycle is returned by the bridges that cannot express cyclic graphs.
var ErrCycle = errors.New("storable: cyclic value")

// DecodeError reports where and why decoding failed.
type DecodeError struct {
	Err    error
	Offset int64 // Offset of the record that failed
	Tag    Tag   // Record tag, TagNone when not known
	Index  int64 // Offending table index, -1 when not applicable
}

func (e *DecodeError) Error() string {
	msg := e.Err.Error()
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (index %d)", msg, e.Index)
	}
	switch {
	case e.Tag == TagNone:
	case errors.Is(e.Err, ErrUnknownTag):
		msg = fmt.Sprintf("%s %d", msg, int(e.Tag))
	default:
		msg = fmt.Sprintf("%s in %s record", msg, e.Tag)
	}
	return fmt.Sprintf("storable: %s at offset %d", msg, e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
