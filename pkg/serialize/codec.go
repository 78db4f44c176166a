// Package serialize is the bytes<->object codec layer. The Store treats
// serialization as pluggable: a Serializer/Deserializer pair is selected by
// name, registered process-wide, and the name travels inside a StoreConfig
// so a Store reconstructed in a foreign process uses the same codec.
package serialize

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Serializer turns an object into self-describing bytes.
type Serializer func(obj any) ([]byte, error)

// Deserializer reverses a Serializer; it must accept exactly the bytes
// produced by its paired Serializer and reproduce an equal object.
type Deserializer func(data []byte, out any) error

// A codec name identifies a Serializer/Deserializer pair so it can travel
// inside a StoreConfig as a string rather than a closure.
const (
	// DefaultCodecName is used when a Store's config names no serializer.
	DefaultCodecName = "gob"
)

var registry = map[string]struct {
	ser   Serializer
	deser Deserializer
}{}

func init() {
	Register(DefaultCodecName, GobSerialize, GobDeserialize)
}

// Register installs a named Serializer/Deserializer pair in the process-wide
// codec registry. Connector and Store implementations that ship their own
// codec call this from an init() function.
func Register(name string, ser Serializer, deser Deserializer) {
	registry[name] = struct {
		ser   Serializer
		deser Deserializer
	}{ser, deser}
}

// Lookup returns the named codec, or an error if it was never registered.
// An empty name resolves to DefaultCodecName.
func Lookup(name string) (Serializer, Deserializer, error) {
	if name == "" {
		name = DefaultCodecName
	}
	entry, ok := registry[name]
	if !ok {
		return nil, nil, fmt.Errorf("serialize: unknown codec %q", name)
	}
	return entry.ser, entry.deser, nil
}

// GobSerialize is the default codec: encoding/gob, self-describing enough to
// round-trip arbitrary registered Go types, matching the teacher's own
// preference for stdlib encodings over bespoke wire formats where nothing in
// the pack suggests a payload codec (the peer data-channel framing uses gob
// too; the module carries no msgpack or protobuf).
func GobSerialize(obj any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(obj); err != nil {
		return nil, fmt.Errorf("serialize: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDeserialize is the default codec's Deserializer.
func GobDeserialize(data []byte, out any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("serialize: gob decode: %w", err)
	}
	return nil
}
