// Package peer implements the WebRTC data-channel peer fabric (spec §4.6):
// a per-endpoint Manager that dials and accepts peer connections brokered
// by the relay, and a request/response framing layer mirroring the
// Connector contract (get/put/exists/evict) over each data channel.
package peer

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Op names the Connector-mirroring operation a Request carries.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpExists Op = "exists"
	OpEvict  Op = "evict"
)

// Request is one frame sent peer->peer over a data channel. ID lets
// responses complete out of order; the sender matches them back up.
type Request struct {
	ID       uint64
	Op       Op
	ObjectID string
	Data     []byte
}

// Response answers a Request with the same ID.
type Response struct {
	ID    uint64
	Found bool
	Data  []byte
	Error string
}

// frameMaxBytes bounds a single encoded frame at 64 MiB so a misbehaving
// peer cannot force an unbounded allocation.
const frameMaxBytes = 64 << 20

// writeFrame gob-encodes v and writes it to w as a 4-byte big-endian
// length prefix followed by the payload, the replacement for the
// teacher's protobuf-framed channel messages (see DESIGN.md).
func writeFrame(w io.Writer, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("peer: encoding frame: %w", err)
	}
	if buf.Len() > frameMaxBytes {
		return fmt.Errorf("peer: frame of %d bytes exceeds %d byte limit", buf.Len(), frameMaxBytes)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("peer: writing frame header: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("peer: writing frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed gob frame from r into v.
func readFrame(r io.Reader, v interface{}) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > frameMaxBytes {
		return fmt.Errorf("peer: incoming frame of %d bytes exceeds %d byte limit", n, frameMaxBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("peer: reading frame body: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return fmt.Errorf("peer: decoding frame: %w", err)
	}
	return nil
}
