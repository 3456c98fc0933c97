// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultAcceptThreshold is the minimum cosine similarity a gallery entry
	// must strictly exceed to be considered a match
	DefaultAcceptThreshold = 0.6

	// DefaultDetectionConfidence is the minimum detector confidence for a face
	// to enter the matching pipeline
	DefaultDetectionConfidence = 0.5

	// DefaultTopK is the default number of candidates returned by diagnostic
	// top-K queries
	DefaultTopK = 5

	// DefaultEmbeddingDim is the dimensionality of face embedding vectors
	DefaultEmbeddingDim = 512
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel match tasks per batch
	WorkerPoolSize = 8

	// MaxBulkImages is the maximum number of images accepted in one bulk
	// recognition request
	MaxBulkImages = 20
)

// History constants
const (
	// DefaultHistoryLimit is the default page size for recognition history
	DefaultHistoryLimit = 50

	// DefaultAttendanceLimit is the default page size for per-identity
	// attendance history
	DefaultAttendanceLimit = 30
)

// HNSW index parameters for the lookalike diagnostics index
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16
)
