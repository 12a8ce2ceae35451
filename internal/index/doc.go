// Package index holds the embedded document sections and answers similarity
// queries against them.
//
// A rebuild embeds every chunk first, then swaps the stored set inside one
// transaction, so readers never see a half-built index. Searches run
// concurrently with each other and wait for an in-flight rebuild.
package index
