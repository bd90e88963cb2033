// Package search retrieves and ranks statements from the temporal knowledge
// graph.
//
// # Retrieval
//
// A Searcher runs three retrievers concurrently against a driver.FactStore:
//   - Lexical: full-text search over statement facts, with the query
//     sanitized for Lucene and truncated to MaxQueryWords words
//   - Vector: nearest neighbours over fact embeddings, floored at
//     driver.MinSimilarity
//   - Graph: up to driver.MaxSeedEntities seed entities found by name
//     embedding, then a bounded traversal to the statements around them
//
// A retriever that fails logs the error and contributes an empty list.
//
// # Ranking
//
// A Ranker fuses the three lists into one. It picks a strategy per search:
//
//  1. An external crossencoder.Reranker, when configured, scores the
//     deduplicated union in one call. If the call fails, the union is
//     returned unscored.
//  2. When only one source returned anything, a crossencoder.Classifier
//     judges each candidate and only relevant ones are kept.
//  3. Otherwise MultiFactorScore weighs each source's signal with
//     multi-source, recency, popularity and authority bonuses, and
//     MaximalMarginalRelevance trims near-duplicates.
//
// StrategyRRF replaces all three with WeightedRRF.
//
// Every strategy writes its score into ScoredStatement.ChosenScore and tags
// it with a ScoreSource, so AdaptiveFilter can cut the tail without guessing
// which field holds the score.
//
// # Usage
//
//	searcher := search.NewSearcher(store, embedderClient, logger)
//	ranker := search.NewRanker(search.RankerConfig{RerankThreshold: 0.3}, reranker, classifier, logger)
//
//	candidates := searcher.Retrieve(ctx, "where does alice work", "user-1", opts)
//	ranked, method := ranker.Rank(ctx, "where does alice work", candidates, opts.Limit)
//	ranked = search.AdaptiveFilter(ranked, opts.Limit, opts.ScoreThreshold, opts.MinResults)
package search
