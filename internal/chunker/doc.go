// Package chunker splits loaded documents into overlapping chunks for
// embedding.
//
// The splitter is recursive: text is cut on the coarsest separator present
// ("\n\n", then "\n", ". ", " ", and finally single runes). Pieces shorter
// than the chunk size are packed together greedily; longer pieces are split
// again with the next separator. Each separator stays attached to the start
// of the piece that follows it, and chunks are trimmed of surrounding
// whitespace. Lengths are counted in runes.
//
// # Basic Usage
//
//	c, err := chunker.New(1024, 150)
//	if err != nil {
//	    return err
//	}
//	chunks := c.Split(docs)
//
// Every chunk carries the metadata of its document plus a chunk_index.
// Splitting is deterministic: the same documents always yield the same
// chunks.
package chunker
