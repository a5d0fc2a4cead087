// Package faqrag answers questions from a fixed FAQ corpus.
//
// An Engine serves any number of named configurations, each pairing a
// corpus file with a persisted vector index built from it. Questions are
// answered by direct match when a stored question is close enough, and
// otherwise by retrieval, rerank and grounded generation. See package query
// for the stage contract and package ingestion for index construction.
package faqrag
