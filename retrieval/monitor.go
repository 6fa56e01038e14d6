package retrieval

import (
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/storage"
)

// RetrievalMonitor receives callbacks during a hybrid retrieval pass.
// Implementations can use it for metrics, tracing, or debugging search
// quality. All methods are called from the goroutine that invoked
// Retrieve, never concurrently.
type RetrievalMonitor interface {
	// Start is called once at the beginning of a retrieval.
	Start(query string)

	// AfterVectorSearch is called with the raw vector path results.
	AfterVectorSearch(matches []*storage.ChunkMatch)

	// AfterLexicalSearch is called with the raw lexical path results.
	AfterLexicalSearch(matches []*storage.ChunkMatch)

	// VectorPathFailed is called when the vector path returns an error.
	VectorPathFailed(err error)

	// LexicalPathFailed is called when the lexical path returns an error.
	LexicalPathFailed(err error)

	// AfterFusion is called with the fused, ranked, truncated results.
	AfterFusion(chunks []*core.ScoredChunk)
}

type noopMonitor struct{}

func (noopMonitor) Start(string)                             {}
func (noopMonitor) AfterVectorSearch([]*storage.ChunkMatch)  {}
func (noopMonitor) AfterLexicalSearch([]*storage.ChunkMatch) {}
func (noopMonitor) VectorPathFailed(error)                   {}
func (noopMonitor) LexicalPathFailed(error)                  {}
func (noopMonitor) AfterFusion([]*core.ScoredChunk)          {}
