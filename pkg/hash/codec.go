package hash

import "encoding/binary"

// Codec fixes the on-disk representation of a key or value type: every
// encoded value is exactly Size() bytes, which is what lets a bucket page
// compute its slot layout (and, as a side effect, is what makes variable-size
// keys/values impossible to store — by design, see spec.md's Non-goals).
type Codec[T any] interface {
	// Size is the fixed number of bytes Encode always produces.
	Size() int
	// Encode serializes a value into a Size()-byte slice.
	Encode(T) []byte
	// Decode deserializes a Size()-byte slice back into a value.
	Decode([]byte) T
}

// int64Codec encodes an int64 as 8 fixed bytes, little-endian.
type int64Codec struct{}

// Int64Codec is the Codec for int64 keys and values.
var Int64Codec Codec[int64] = int64Codec{}

func (int64Codec) Size() int { return 8 }

func (int64Codec) Encode(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

func (int64Codec) Decode(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

// stringCodec encodes a string into a fixed width, truncating longer
// strings and zero-padding shorter ones. Grounded on the BusTub original's
// GenericKey<N>, the fixed-width byte key used for everything besides the
// built-in int comparator.
type stringCodec struct {
	width int
}

// StringCodec returns a Codec that encodes strings into a fixed width of
// width bytes. Strings longer than width are truncated on Encode; decoded
// strings have trailing NUL bytes stripped.
func StringCodec(width int) Codec[string] {
	return stringCodec{width: width}
}

func (c stringCodec) Size() int { return c.width }

func (c stringCodec) Encode(v string) []byte {
	buf := make([]byte, c.width)
	copy(buf, v)
	return buf
}

func (c stringCodec) Decode(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}
