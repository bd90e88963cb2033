/*
Package crossencoder scores search candidates against a query after retrieval.

# Overview

Two kinds of scorer live here. A Reranker takes the whole candidate list in
one batched call and returns a relevance score per document. A Classifier
makes a yes/no relevance judgment for a single passage and is fanned out
concurrently with ClassifyAll.

# Rerankers

## Cohere-compatible API (CohereReranker)

Posts {query, documents, model, top_n} to a /rerank endpoint and reads back
{results: [{index, relevance_score}]}.

	reranker, err := crossencoder.NewCohereReranker(crossencoder.CohereConfig{
		APIKey: os.Getenv("COHERE_API_KEY"),
	})
	results, err := reranker.Rerank(ctx, "where does alice work", facts)

## Local model (EmbedEverythingReranker)

Runs a cross-encoder such as BAAI/bge-reranker-base in process.

	reranker, err := crossencoder.NewEmbedEverythingReranker("BAAI/bge-reranker-base")

## Circuit breaking (CircuitBreakerReranker)

NewReranker wraps the configured reranker in a gobreaker circuit breaker.
Once it trips, calls fail fast with ErrCircuitOpen and the configured
alert.Alerter is notified.

# Classifier

LLMClassifier sends one chat request per passage and expects a single
"True" or "False" token back:

	chat, _ := nlp.NewOpenAIClient(apiKey, nlp.Config{
		Model:       "gpt-4o-mini",
		Temperature: nlp.Float32(0),
		MaxTokens:   nlp.Int(1),
	})
	verdicts := crossencoder.ClassifyAll(ctx, crossencoder.NewLLMClassifier(chat), query, passages, 0, logger)

ClassifyAll fails closed: a passage whose call errors is judged not relevant.
*/
package crossencoder
