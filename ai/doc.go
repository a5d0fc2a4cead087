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

// Package ai provides abstractions for the model services used by faqrag.
//
// The query and ingestion pipelines talk to two narrow oracles:
//
//   - Embedder: maps text to a vector
//   - Generator: produces a single deterministic completion for a prompt
//
// A Provider aggregates both for one configuration and owns their lifecycle.
//
// # Implementation Packages
//
//   - ai/openai: langchaingo client for OpenAI-compatible APIs (default)
//   - ai/goopenai: go-openai client for OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors in the implementation packages return interface types.
// Mock constructors return concrete types so tests can inject behavior and
// inspect call counts.
//
// # Normalization
//
// Embedders may return raw vectors. Callers normalize with
// core.NormalizeVector so that every vector, whichever backend produced it,
// goes through the same normalization.
//
// # Retries
//
// The query pipeline never retries oracle calls. Ingestion may wrap its
// Embedder with WithRetry to add exponential backoff.
package ai
