// Package query answers questions against one loaded configuration.
//
// A Pipeline runs a fixed sequence of stages and returns at the first one
// that decides the outcome:
//
//  1. Direct match: the normalized question and a normalized stored question
//     contain one another. The stored answer is returned verbatim.
//  2. Retrieval: the question is embedded and the top-k records are fetched
//     from the vector index.
//  3. Rerank: each candidate is re-embedded with core.EmbeddingInput and
//     scored by cosine similarity against the question vector.
//  4. Threshold: a best score below the threshold yields the not-found
//     sentinel.
//  5. Generation: the generator answers from the winning record only.
//
// Oracle failures are wrapped with core.ErrOracle and never retried here.
// Corpus/index disagreements are wrapped with core.ErrConfiguration.
//
// Pipelines are immutable after construction and safe for concurrent use.
package query
