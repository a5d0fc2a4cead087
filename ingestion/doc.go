// Package ingestion builds vector indexes from a corpus of question/answer records.
//
// The Pipeline type embeds every record, rendered with core.EmbeddingInput,
// and produces an index whose i-th vector belongs to the i-th record:
//   - Records are validated before any embedding work starts
//   - Batches are embedded concurrently on a bounded worker pool
//   - Vectors are normalized and placed at their corpus positions regardless
//     of the order in which batches complete
//   - The first failing batch cancels the remaining work and fails the build
//
// Persist writes the result through a storage.IndexRepository. The corpus
// itself is persisted separately (see package corpus).
package ingestion
