package vectorindex

import (
	"encoding/gob"
	"fmt"
	"io"
)

// artifact is the serialized form of a Flat index. The gob stream is the
// single opaque artifact persisted per document.
type artifact struct {
	Dim     int
	Vectors [][]float32
}

// WriteTo serializes the index to w.
func (f *Flat) WriteTo(w io.Writer) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(artifact{Dim: f.dim, Vectors: f.vectors}); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return nil
}

// Read deserializes an index from r. The whole index is loaded before any
// search can run against it.
func Read(r io.Reader) (*Flat, error) {
	var a artifact
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if a.Dim <= 0 || len(a.Vectors) == 0 {
		return nil, fmt.Errorf("decoded index is empty")
	}
	for i, v := range a.Vectors {
		if len(v) != a.Dim {
			return nil, fmt.Errorf("decoded vector %d has dimension %d, index dimension is %d", i, len(v), a.Dim)
		}
	}
	return &Flat{dim: a.Dim, vectors: a.Vectors}, nil
}
