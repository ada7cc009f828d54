/*
Package rows implements the packed row encoding used for table data and for
persisted index definitions alike.

# Row format

A row is an ordered sequence of variable-length fields laid out contiguously.
Each field is preceded by a header that carries only its body length, so the
address and length of field i can be computed by probing headers without
decoding any field body:

 1. Tiny header (1 byte) - bodies of 0-9 bytes:
    [('0' + body_length)]

 2. Short header (2 bytes) - bodies up to 255 bytes:
    ['f', body_length]

 3. Long header (5 bytes) - bodies up to 2GB:
    ['F', length_as_4byte_little_endian]

The shortest form that fits is always chosen, so the encoding is canonical:
equal field sequences produce equal bytes.

# Views and builders

A View is a read-only cursor over a previously materialized row buffer. A
Builder is an in-progress row that is not visible to readers yet. Both satisfy
the Row addressing contract, so index-key derivation code does not care which
lifecycle state a row is in. Field(i) for an out-of-range i is a caller bug
and panics; it is never a recoverable condition.
*/
package rows

import (
	"encoding/binary"
	"fmt"

	"github.com/PixeeSandbox/ravendb/ravendb_errors"
)

// MaxKeyLen bounds any index key derived from a row. The underlying
// variable-key trees address slices with a 16-bit length.
const MaxKeyLen = 0xffff

// Row is the per-field addressing contract shared by View and Builder.
// Field(i) is defined only for 0 <= i < FieldCount(); anything else panics.
type Row interface {
	FieldCount() int
	Field(i int) []byte
}

// ProbeField analyzes one field header.
//
// Returns:
//   - hdrlen: header length (1, 2 or 5 bytes), 0 if incomplete
//   - bodylen: field body length in bytes
//   - ok: false for garbage or an incomplete header
func ProbeField(data []byte) (hdrlen, bodylen int, ok bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	switch b := data[0]; {
	case b >= '0' && b <= '9': // tiny
		return 1, int(b - '0'), true
	case b == 'f': // short
		if len(data) < 2 {
			return 0, 0, false
		}
		return 2, int(data[1]), true
	case b == 'F': // long
		if len(data) < 5 {
			return 0, 0, false
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			return 0, 0, false
		}
		return 5, int(bl), true
	}
	return 0, 0, false
}

// AppendField appends one encoded field (header plus body) to the buffer,
// choosing the shortest header form that fits.
func AppendField(into []byte, body []byte) []byte {
	switch n := len(body); {
	case n < 10:
		into = append(into, byte('0'+n))
	case n <= 0xff:
		into = append(into, 'f', byte(n))
	default:
		if n > 0x7fffffff {
			panic("oversized row field")
		}
		into = append(into, 'F')
		into = binary.LittleEndian.AppendUint32(into, uint32(n))
	}
	return append(into, body...)
}

type fieldRef struct {
	off uint32 // body offset within the row buffer
	len uint32
}

// View is a read-only cursor over a materialized row buffer. The buffer is
// probed once at construction; Field returns zero-copy subslices of it.
type View struct {
	buf  []byte
	refs []fieldRef
}

// NewView walks the field headers of a packed row buffer. The buffer must
// contain whole fields and nothing else; trailing garbage or a truncated
// field is a format error, since the buffer may come from disk.
func NewView(buf []byte) (*View, error) {
	v := &View{buf: buf}
	for at := 0; at < len(buf); {
		hlen, blen, ok := ProbeField(buf[at:])
		if !ok || at+hlen+blen > len(buf) {
			return nil, fmt.Errorf("%w: field %d at offset %d",
				ravendb_errors.ErrBadRowFormat, len(v.refs), at)
		}
		v.refs = append(v.refs, fieldRef{off: uint32(at + hlen), len: uint32(blen)})
		at += hlen + blen
	}
	return v, nil
}

func (v *View) FieldCount() int {
	return len(v.refs)
}

// Field returns the i-th field body, borrowed from the row buffer.
func (v *View) Field(i int) []byte {
	if i < 0 || i >= len(v.refs) {
		panic(fmt.Sprintf("row field %d out of range [0,%d)", i, len(v.refs)))
	}
	r := v.refs[i]
	return v.buf[r.off : r.off+r.len]
}

// Bytes returns the backing row buffer.
func (v *View) Bytes() []byte {
	return v.buf
}

// Builder is an in-progress packed row. Fields live in uncommitted memory
// until Seal; addressing works the same as on a View.
type Builder struct {
	fields [][]byte
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one raw field. The builder keeps a reference to the slice, not
// a copy; the caller must not mutate it before Seal.
func (b *Builder) Add(field []byte) *Builder {
	b.fields = append(b.fields, field)
	return b
}

func (b *Builder) AddString(s string) *Builder { return b.Add([]byte(s)) }
func (b *Builder) AddInt64(v int64) *Builder   { return b.Add(Int64Bytes(v)) }
func (b *Builder) AddInt32(v int32) *Builder   { return b.Add(Int32Bytes(v)) }
func (b *Builder) AddUint64(v uint64) *Builder { return b.Add(Uint64Bytes(v)) }
func (b *Builder) AddBool(v bool) *Builder     { return b.Add(BoolBytes(v)) }

func (b *Builder) FieldCount() int {
	return len(b.fields)
}

func (b *Builder) Field(i int) []byte {
	if i < 0 || i >= len(b.fields) {
		panic(fmt.Sprintf("row field %d out of range [0,%d)", i, len(b.fields)))
	}
	return b.fields[i]
}

// Size returns the encoded length of the row so far.
func (b *Builder) Size() (sum int) {
	for _, f := range b.fields {
		switch n := len(f); {
		case n < 10:
			sum += 1 + n
		case n <= 0xff:
			sum += 2 + n
		default:
			sum += 5 + n
		}
	}
	return
}

// AppendTo encodes the row into buf.
func (b *Builder) AppendTo(buf []byte) []byte {
	for _, f := range b.fields {
		buf = AppendField(buf, f)
	}
	return buf
}

// Seal materializes the row into a fresh buffer. The builder stays usable;
// callers wanting a View over the result go through NewView.
func (b *Builder) Seal() []byte {
	return b.AppendTo(make([]byte, 0, b.Size()))
}
