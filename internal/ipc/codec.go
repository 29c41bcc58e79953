package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sodove/aios-agent/pkg/apperror"
)

// MaxMessageSize bounds a single framed message body, matching the
// original length-prefixed codec's cap.
const MaxMessageSize = 16 * 1024 * 1024

const lengthPrefixSize = 4

// Encode serializes env as JSON and prepends a 4-byte big-endian length
// prefix covering the JSON body only.
func Encode(env Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, apperror.WrapJSON(err)
	}
	if len(body) > MaxMessageSize {
		return nil, apperror.NewProtocol(fmt.Sprintf("message too large: %d bytes exceeds %d byte limit", len(body), MaxMessageSize))
	}

	out := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(out[:lengthPrefixSize], uint32(len(body)))
	copy(out[lengthPrefixSize:], body)
	return out, nil
}

// Decode reads one length-prefixed envelope from r. A short read at offset
// 0 (n==0, plain io.EOF) means the peer hung up cleanly between frames and
// is reported as apperror.NewConnectionClosed; a short read that already
// consumed part of the frame (n>0, io.ErrUnexpectedEOF) means the
// connection died mid-message and is reported as apperror.WrapIO instead.
func Decode(r io.Reader) (Envelope, error) {
	var lenBuf [lengthPrefixSize]byte
	if n, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if n == 0 && err == io.EOF {
			return Envelope{}, apperror.NewConnectionClosed()
		}
		return Envelope{}, apperror.WrapIO(err)
	}

	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > MaxMessageSize {
		return Envelope{}, apperror.NewProtocol(fmt.Sprintf("message too large: %d bytes exceeds %d byte limit", size, MaxMessageSize))
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, apperror.WrapIO(err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, apperror.WrapJSON(err)
	}
	return env, nil
}

// Write encodes env and writes it to w in a single call, so a partial
// write never interleaves with a concurrent frame.
func Write(w io.Writer, env Envelope) error {
	buf, err := Encode(env)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return apperror.WrapIO(err)
	}
	return nil
}
