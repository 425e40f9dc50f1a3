package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// maxVectorDim bounds deserialized vector lengths so a corrupt blob cannot
// trigger a huge allocation.
const maxVectorDim = 1 << 16

// MarshalVector serializes an embedding vector to the MUS format blob stored
// alongside each chunk. A nil or empty vector serializes to a zero-length
// marker.
func MarshalVector(vector []float32) []byte {
	size := varint.Int.Size(len(vector))
	if len(vector) > 0 {
		size += len(vector) * raw.Float32.Size(vector[0])
	}

	bs := make([]byte, size)
	n := varint.Int.Marshal(len(vector), bs)
	for _, v := range vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return bs[:n]
}

// UnmarshalVector deserializes an embedding vector from its MUS blob.
func UnmarshalVector(bs []byte) ([]float32, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	if length < 0 || length > maxVectorDim {
		return nil, fmt.Errorf("%w: vector length %d out of range", ErrSerializationFailed, length)
	}
	if length == 0 {
		return nil, nil
	}

	vector := make([]float32, length)
	for i := range vector {
		v, m, err := raw.Float32.Unmarshal(bs[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: vector element %d: %w", ErrSerializationFailed, i, err)
		}
		vector[i] = v
		n += m
	}
	return vector, nil
}
