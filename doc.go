// Package recall retrieves facts from a temporal, reified knowledge graph.
//
// A search turns a natural-language query into a ranked, temporally filtered
// and deduplicated set of statements. Three retrievers run concurrently:
// full-text search over statement facts, vector search over fact embeddings,
// and a bounded traversal from the entities closest to the query. Their
// lists are fused by an external reranker, an LLM relevance classifier, or
// multi-factor scoring with maximal marginal relevance, then cut by an
// adaptive score filter. The episodes behind the surviving statements are
// returned alongside them.
//
// Any retriever or reranker may fail without failing the search. Recall
// counts and the per-search recall log are written by a background queue
// after the result is returned.
//
// # Basic Usage
//
//	store, err := driver.NewFactStore(driver.Config{
//		Provider: driver.GraphProviderNeo4j,
//		URI:      "bolt://localhost:7687",
//		Username: "neo4j",
//		Password: "password",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	embedderClient := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{Model: "text-embedding-3-small"})
//
//	client, err := recall.NewClient(store, embedderClient, &recall.Config{
//		Ranker: search.RankerConfig{RerankThreshold: 0.3},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Searching
//
//	result, err := client.Search(ctx, "where does alice work", "user-1", &types.SearchOptions{
//		Limit: 5,
//	})
//	for _, fact := range result.Facts {
//		fmt.Println(fact.ValidAt.Format(time.DateOnly), fact.Fact)
//	}
//
// Options left at zero take the client's SearchDefaults and then the
// built-in defaults: limit 10, traversal depth 4, score threshold 0.7,
// minimum results 10, and an end time of now. Invalidated statements are
// excluded unless IncludeInvalidated is set.
//
// # Ranking Strategies
//
// When a Reranker is configured, the deduplicated union is scored in one call
// and results below the threshold are dropped; if the call fails the union is
// returned unscored. Otherwise, when only one retriever returned anything and
// a Classifier is configured, each candidate is judged relevant or not. In
// every other case candidates are scored by source weight, multi-source,
// recency, popularity and authority bonuses, then diversified with MMR.
// Setting search.StrategyRRF uses weighted reciprocal rank fusion instead.
package recall
