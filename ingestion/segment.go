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


package ingestion

import (
	"strings"
	"time"

	"github.com/poiesic/grounder/core"
)

// DefaultMaxChunkChars bounds the character length of a single chunk.
const DefaultMaxChunkChars = 1200

// Document is the unit of ingestion: a body of text with its tenant and
// source metadata. Chunks inherit the metadata.
type Document struct {
	Id       core.ID
	TenantId string
	Title    string
	Text     string
	Metadata map[string]string
}

// Segmenter splits document text into chunks on paragraph boundaries.
// Adjacent paragraphs are packed together up to the size limit; a
// single paragraph exceeding it is split at word boundaries. Chunk
// offsets index into the original document text.
type Segmenter struct {
	maxChars int
	clock    func() time.Time
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithMaxChunkChars overrides the chunk size limit.
func WithMaxChunkChars(n int) SegmenterOption {
	return func(s *Segmenter) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithSegmenterClock replaces the ingestion timestamp source, for tests.
func WithSegmenterClock(clock func() time.Time) SegmenterOption {
	return func(s *Segmenter) {
		s.clock = clock
	}
}

// NewSegmenter creates a segmenter with the default size limit.
func NewSegmenter(opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		maxChars: DefaultMaxChunkChars,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits a document into ordered chunks. Ordinals follow the
// chunk's position; offsets are byte positions in the document text.
func (s *Segmenter) Segment(doc *Document) []*core.Chunk {
	spans := s.pack(doc.Text, paragraphSpans(doc.Text))

	chunks := make([]*core.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, &core.Chunk{
			DocumentId:  doc.Id,
			TenantId:    doc.TenantId,
			Ordinal:     i,
			Text:        doc.Text[sp.start:sp.end],
			StartOffset: sp.start,
			EndOffset:   sp.end,
			Metadata:    s.chunkMetadata(doc),
		})
	}
	return chunks
}

// chunkMetadata copies the document metadata and stamps title and
// ingestion time where the document does not already provide them.
func (s *Segmenter) chunkMetadata(doc *Document) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	if doc.Title != "" {
		meta[core.MetaTitle] = doc.Title
	}
	if _, ok := meta[core.MetaCreatedAt]; !ok {
		meta[core.MetaCreatedAt] = s.clock().UTC().Format(time.RFC3339)
	}
	return meta
}

type span struct {
	start, end int
}

// paragraphSpans locates non-blank paragraphs in text, trimmed of
// surrounding whitespace.
func paragraphSpans(text string) []span {
	var spans []span
	offset := 0
	for _, part := range strings.Split(text, "\n\n") {
		i := 0
		for i < len(part) && isSpace(part[i]) {
			i++
		}
		j := len(part)
		for j > i && isSpace(part[j-1]) {
			j--
		}
		if j > i {
			spans = append(spans, span{offset + i, offset + j})
		}
		offset += len(part) + 2
	}
	return spans
}

// pack merges adjacent paragraph spans up to the size limit and splits
// oversized ones at word boundaries.
func (s *Segmenter) pack(text string, paragraphs []span) []span {
	var packed []span
	var current span
	open := false

	flush := func() {
		if open {
			packed = append(packed, current)
			open = false
		}
	}

	for _, p := range paragraphs {
		if p.end-p.start > s.maxChars {
			flush()
			packed = append(packed, s.split(text, p)...)
			continue
		}
		if open && p.end-current.start <= s.maxChars {
			current.end = p.end
			continue
		}
		flush()
		current = p
		open = true
	}
	flush()
	return packed
}

// split breaks an oversized span at word boundaries. A run without any
// space is cut hard at the limit.
func (s *Segmenter) split(text string, p span) []span {
	var parts []span
	start := p.start
	for p.end-start > s.maxChars {
		limit := start + s.maxChars
		cut := strings.LastIndexByte(text[start:limit], ' ')
		if cut <= 0 {
			cut = limit
		} else {
			cut += start
		}
		parts = append(parts, span{start, cut})
		for cut < p.end && isSpace(text[cut]) {
			cut++
		}
		start = cut
	}
	if p.end > start {
		parts = append(parts, span{start, p.end})
	}
	return parts
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
