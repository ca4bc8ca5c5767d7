package store

import "encoding/json"

// Codec converts a value to and from its on-disk bytes.
//
// Decode receives the path of the file being read so that codecs whose
// value depends on file location (profiles derive their device and id
// from it) can reconstruct it.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte, path string) (T, error)
}

// JSONCodec encodes values as indented JSON.
type JSONCodec[T any] struct{}

// Encode implements Codec.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Decode implements Codec.
func (JSONCodec[T]) Decode(data []byte, _ string) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
