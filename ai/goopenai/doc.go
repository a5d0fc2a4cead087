// Package goopenai implements ai.Provider on top of the go-openai client.
//
// It talks to the same OpenAI-compatible endpoints as package ai/openai and
// is selected with ai.BackendGoOpenAI.
package goopenai
