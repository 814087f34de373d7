// Package codec implements the wire framing spec §6 mandates: each frame
// is a (name, sender address, payload) triple with a length-prefixed
// binary layout, network byte order, so a reader never needs to buffer an
// unbounded amount before it knows a frame's extent.
//
// Bodies use github.com/vmihailenco/msgpack/v5, which (unlike gob) encodes
// Go structs as name-keyed maps: new optional fields added to a message
// struct are simply absent on old encoders and ignored on old decoders,
// giving the forward/backward compatibility spec §6 requires without a
// hand-rolled schema-versioning scheme.
package codec

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/AHINK/mesos/internal/errors"
)

// Frame is one decoded wire message: a name, the sender's address text
// ("name(host:port)") and an opaque encoded body.
type Frame struct {
	Name string
	From string
	Body []byte
}

const maxFrameLen = 64 << 20 // 64MiB guards against a corrupt length prefix

// WriteFrame serializes f to w in the u32|bytes,u32|bytes,u32|bytes layout
// spec §6 defines, network byte order throughout.
func WriteFrame(w io.Writer, f Frame) error {
	bw := bufio.NewWriter(w)
	if err := writeLenPrefixed(bw, []byte(f.Name)); err != nil {
		return err
	}
	if err := writeLenPrefixed(bw, f.Body); err != nil {
		return err
	}
	if err := writeLenPrefixed(bw, []byte(f.From)); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadFrame reads and validates one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	name, err := readLenPrefixed(r)
	if err != nil {
		return Frame{}, err
	}
	body, err := readLenPrefixed(r)
	if err != nil {
		return Frame{}, err
	}
	from, err := readLenPrefixed(r)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Name: string(name), From: string(from), Body: body}, nil
}

func writeLenPrefixed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("frame length exceeds maximum")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncodeBody serializes a structured message payload with msgpack.
func EncodeBody(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// DecodeBody deserializes a frame body into v, which must be a pointer.
// Fields present in the encoded map but absent from v's type are silently
// skipped, and fields of v absent from the map keep their zero value —
// the forward/backward compatibility spec §6 requires.
func DecodeBody(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
