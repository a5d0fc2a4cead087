// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/faqrag/core"
)

// formatVersion is written first in every header encoding.
const formatVersion uint64 = 1

const float32Size = 4

// MarshalIndexHeader serializes an IndexHeader to bytes.
func MarshalIndexHeader(h core.IndexHeader) []byte {
	var created int64
	if !h.CreatedAt.IsZero() {
		created = h.CreatedAt.UnixNano()
	}
	size := varint.Uint64.Size(formatVersion) +
		varint.Uint64.Size(uint64(h.Dimension)) +
		varint.Uint64.Size(uint64(h.Count)) +
		ord.String.Size(h.EmbeddingModel) +
		ord.String.Size(h.Template) +
		varint.Uint64.Size(uint64(h.CorpusFingerprint)) +
		varint.Int64.Size(created)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(formatVersion, buf)
	n += varint.Uint64.Marshal(uint64(h.Dimension), buf[n:])
	n += varint.Uint64.Marshal(uint64(h.Count), buf[n:])
	n += ord.String.Marshal(h.EmbeddingModel, buf[n:])
	n += ord.String.Marshal(h.Template, buf[n:])
	n += varint.Uint64.Marshal(uint64(h.CorpusFingerprint), buf[n:])
	varint.Int64.Marshal(created, buf[n:])
	return buf
}

// UnmarshalIndexHeader deserializes an IndexHeader from bytes.
func UnmarshalIndexHeader(data []byte) (core.IndexHeader, error) {
	var h core.IndexHeader

	version, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return h, fmt.Errorf("%w: version: %w", ErrSerializationFailed, err)
	}
	if version != formatVersion {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	off := n

	dimension, n, err := varint.Uint64.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: dimension: %w", ErrSerializationFailed, err)
	}
	off += n

	count, n, err := varint.Uint64.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: count: %w", ErrSerializationFailed, err)
	}
	off += n

	model, n, err := ord.String.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: embedding model: %w", ErrSerializationFailed, err)
	}
	off += n

	template, n, err := ord.String.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: template: %w", ErrSerializationFailed, err)
	}
	off += n

	fingerprint, n, err := varint.Uint64.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: fingerprint: %w", ErrSerializationFailed, err)
	}
	off += n

	created, _, err := varint.Int64.Unmarshal(data[off:])
	if err != nil {
		return h, fmt.Errorf("%w: created at: %w", ErrSerializationFailed, err)
	}

	h.Dimension = int(dimension)
	h.Count = int(count)
	h.EmbeddingModel = model
	h.Template = template
	h.CorpusFingerprint = core.ID(fingerprint)
	if created != 0 {
		h.CreatedAt = time.Unix(0, created).UTC()
	}
	return h, nil
}

// MarshalVector serializes a vector as a length prefix followed by raw float32 values.
func MarshalVector(v []float32) []byte {
	size := varint.Uint64.Size(uint64(len(v))) + len(v)*float32Size
	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(len(v)), buf)
	for _, f := range v {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return buf
}

// UnmarshalVector deserializes a vector written by MarshalVector.
func UnmarshalVector(data []byte) ([]float32, error) {
	length, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	remaining := uint64(len(data) - n)
	if length > remaining/float32Size {
		return nil, fmt.Errorf("%w: vector of %d elements in %d bytes", ErrTruncatedData, length, remaining)
	}

	v := make([]float32, length)
	off := n
	for i := range v {
		f, m, err := raw.Float32.Unmarshal(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %w", ErrSerializationFailed, i, err)
		}
		v[i] = f
		off += m
	}
	return v, nil
}
