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
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/grounder/core"
)

// Chunk values are stored in MUS format. The serializers are hand-maintained
// compositions of mus-go primitives: the chunk layout is small and stable,
// and hand-written code keeps metadata key ordering deterministic.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalChunk serializes a Chunk to bytes.
// Metadata keys are written in sorted order so equal chunks produce equal bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, sizeChunk(chunk))
	n := varint.Uint64.Marshal(uint64(chunk.Id), buf)
	n += varint.Uint64.Marshal(uint64(chunk.DocumentId), buf[n:])
	n += ord.String.Marshal(chunk.TenantId, buf[n:])
	n += varint.Int.Marshal(chunk.Ordinal, buf[n:])
	n += varint.Int.Marshal(chunk.StartOffset, buf[n:])
	n += varint.Int.Marshal(chunk.EndOffset, buf[n:])
	n += ord.String.Marshal(chunk.Text, buf[n:])

	n += varint.Int.Marshal(len(chunk.Vector), buf[n:])
	for _, f := range chunk.Vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}

	keys := sortedMetadataKeys(chunk.Metadata)
	n += varint.Int.Marshal(len(keys), buf[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(chunk.Metadata[k], buf[n:])
	}

	n += marshalTime(chunk.InsertedAt, buf[n:])
	marshalTime(chunk.UpdatedAt, buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk := &core.Chunk{}
	n := 0

	id, c, err := varint.Uint64.Unmarshal(data[n:])
	if err != nil {
		return nil, serErr(err)
	}
	chunk.Id = core.ID(id)
	n += c

	docId, c, err := varint.Uint64.Unmarshal(data[n:])
	if err != nil {
		return nil, serErr(err)
	}
	chunk.DocumentId = core.ID(docId)
	n += c

	if chunk.TenantId, c, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	if chunk.Ordinal, c, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	if chunk.StartOffset, c, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	if chunk.EndOffset, c, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	if chunk.Text, c, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	vecLen, c, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, serErr(err)
	}
	n += c
	if vecLen < 0 {
		return nil, serErr(ErrTruncatedData)
	}
	if vecLen > 0 {
		chunk.Vector = make([]float32, vecLen)
		for i := 0; i < vecLen; i++ {
			if chunk.Vector[i], c, err = raw.Float32.Unmarshal(data[n:]); err != nil {
				return nil, serErr(err)
			}
			n += c
		}
	}

	metaLen, c, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, serErr(err)
	}
	n += c
	if metaLen < 0 {
		return nil, serErr(ErrTruncatedData)
	}
	if metaLen > 0 {
		chunk.Metadata = make(map[string]string, metaLen)
		for i := 0; i < metaLen; i++ {
			var k, v string
			if k, c, err = ord.String.Unmarshal(data[n:]); err != nil {
				return nil, serErr(err)
			}
			n += c
			if v, c, err = ord.String.Unmarshal(data[n:]); err != nil {
				return nil, serErr(err)
			}
			n += c
			chunk.Metadata[k] = v
		}
	}

	if chunk.InsertedAt, c, err = unmarshalTime(data[n:]); err != nil {
		return nil, serErr(err)
	}
	n += c

	if chunk.UpdatedAt, _, err = unmarshalTime(data[n:]); err != nil {
		return nil, serErr(err)
	}

	return chunk, nil
}

func sizeChunk(chunk *core.Chunk) int {
	size := varint.Uint64.Size(uint64(chunk.Id))
	size += varint.Uint64.Size(uint64(chunk.DocumentId))
	size += ord.String.Size(chunk.TenantId)
	size += varint.Int.Size(chunk.Ordinal)
	size += varint.Int.Size(chunk.StartOffset)
	size += varint.Int.Size(chunk.EndOffset)
	size += ord.String.Size(chunk.Text)

	size += varint.Int.Size(len(chunk.Vector))
	for _, f := range chunk.Vector {
		size += raw.Float32.Size(f)
	}

	size += varint.Int.Size(len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}

	size += sizeTime(chunk.InsertedAt)
	size += sizeTime(chunk.UpdatedAt)
	return size
}

// Timestamps are stored as Unix microseconds. The zero time is stored as the
// literal 0 since no real chunk timestamp falls on the Unix epoch boundary.
func marshalTime(t time.Time, bs []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	if micros == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

func sortedMetadataKeys(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func serErr(err error) error {
	return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
}
