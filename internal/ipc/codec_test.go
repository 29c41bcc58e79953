package ipc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/sodove/aios-agent/pkg/apperror"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := NewEnvelope(TypeChatRequest)
	env.Message = "hello there"
	env.ConversationID = uuid.New()

	buf, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.ID != env.ID || got.Type != env.Type || got.Message != env.Message || got.ConversationID != env.ConversationID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, env)
	}
}

func TestEncodeLengthPrefixMatchesBody(t *testing.T) {
	env := NewEnvelope(TypePing)
	buf, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	length := binary.BigEndian.Uint32(buf[:4])
	if int(length) != len(buf)-4 {
		t.Fatalf("length prefix %d does not match body length %d", length, len(buf)-4)
	}
}

func TestDecodeRejectsOversizedLength(t *testing.T) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], MaxMessageSize+1)

	_, err := Decode(bytes.NewReader(lenBuf[:]))
	if !apperror.Is(err, apperror.KindProtocol) {
		t.Fatalf("expected protocol error for oversized length, got %v", err)
	}
}

func TestDecodeShortReadMidLengthPrefixIsIO(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0x00, 0x01}))
	if !apperror.Is(err, apperror.KindIO) {
		t.Fatalf("expected io error for short read mid length prefix, got %v", err)
	}
}

func TestDecodeShortReadMidBodyIsIO(t *testing.T) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 100)
	buf := append(lenBuf[:], []byte("not enough bytes")...)

	_, err := Decode(bytes.NewReader(buf))
	if !apperror.Is(err, apperror.KindIO) {
		t.Fatalf("expected io error for short read mid body, got %v", err)
	}
}

func TestDecodeEmptyStreamIsConnectionClosed(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	if !apperror.Is(err, apperror.KindConnectionClosed) {
		t.Fatalf("expected connection-closed error for empty stream, got %v", err)
	}
}

func TestEncodeRejectsOversizedEnvelope(t *testing.T) {
	env := NewEnvelope(TypeChatRequest)
	huge := make([]byte, MaxMessageSize+1)
	for i := range huge {
		huge[i] = 'a'
	}
	env.Message = string(huge)

	_, err := Encode(env)
	if !apperror.Is(err, apperror.KindProtocol) {
		t.Fatalf("expected protocol error for oversized envelope, got %v", err)
	}
}

func TestWriteThenDecode(t *testing.T) {
	var buf bytes.Buffer
	env := NewEnvelope(TypePong)

	if err := Write(&buf, env); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != TypePong {
		t.Fatalf("got type %q, want %q", got.Type, TypePong)
	}
}
