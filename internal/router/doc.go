// Package router decides how each question is answered.
//
// Every question is searched against the document index and passed through
// the relevance filter. The first matching rule picks the strategy:
//
//  1. relevant documents remain: answer from the documents
//  2. the question asks for current information: search the web
//  3. otherwise: ask the model directly
//
// A strategy whose backend is unavailable or rate limited falls back along
// document retrieval, direct generation, web search. When web search is the
// chosen strategy its failure becomes a friendly message instead.
package router
