package events

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxMessageSize bounds a single native message. Browsers cap replies to
// the extension at 1 MiB; incoming tab events are far smaller.
const MaxMessageSize = 1 << 20

// ErrMalformed wraps errors for a frame that was read completely but whose
// payload is unusable. The stream stays aligned, so decoding can continue.
var ErrMalformed = errors.New("malformed message")

// Decoder reads length-prefixed JSON messages: a 32-bit little-endian byte
// count followed by that many bytes of UTF-8 JSON.
type Decoder struct {
	r      io.Reader
	schema *jsonschema.Schema
	header [4]byte
}

// NewDecoder returns a Decoder that validates every message against the
// event schema.
func NewDecoder(r io.Reader) (*Decoder, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Decoder{r: r, schema: schema}, nil
}

// Decode reads the next event. It returns io.EOF when the stream ends
// cleanly between messages and an error wrapping ErrMalformed for invalid
// payloads.
func (d *Decoder) Decode() (Event, error) {
	if _, err := io.ReadFull(d.r, d.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Event{}, fmt.Errorf("read header: %w", err)
		}
		return Event{}, err
	}

	size := binary.LittleEndian.Uint32(d.header[:])
	if size > MaxMessageSize {
		return Event{}, fmt.Errorf("message of %d bytes exceeds limit of %d", size, MaxMessageSize)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Event{}, fmt.Errorf("read payload: %w", err)
	}

	return d.parse(payload)
}

func (d *Decoder) parse(payload []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := d.schema.Validate(doc); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ev, nil
}

// Encoder writes length-prefixed JSON messages. It is safe for concurrent
// use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v as one framed message.
func (e *Encoder) Encode(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("message of %d bytes exceeds limit of %d", len(payload), MaxMessageSize)
	}

	frame := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
