// Package llm wraps the text generation backends used to answer questions:
// a local Ollama server or an OpenAI-compatible chat completion API.
//
// All backend failures are returned as *types.BackendError so the router can
// decide whether to fall back.
package llm
