// Package searcher retrieves the chunks most similar to a question.
//
//	s := searcher.NewSearcher(searcher.Static(store), emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "refund policy", Limit: 10})
//	context := searcher.FormatContext(resp.Results)
//
// Results can be cached per query and limit for an hour; callers that
// change the store call InvalidateCache. Previews strip PDF producer
// metadata and keep the first and last 100 runes of each chunk.
package searcher
