// Package chunker divides markdown documents into "## " sections for embedding and retrieval.
//
// A section starts at a line beginning with "##" followed by whitespace and a
// non-empty title, and runs up to the next such line or the end of the document.
// Deeper headings ("###") stay inside the enclosing section. Text before the
// first marker belongs to no chunk.
//
// # Basic Usage
//
//	c := chunker.New()
//	corpus, err := c.LoadDir("docs")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, chunk := range corpus.Chunks {
//	    fmt.Printf("%s: %s (%d bytes)\n", chunk.SourceID, chunk.Header, len(chunk.Text))
//	}
//
// Chunk text is the raw byte range of the section, so concatenating a
// document's chunks reproduces the document from its first marker onward.
// Chunking is deterministic: the same input always yields the same sequence.
package chunker
