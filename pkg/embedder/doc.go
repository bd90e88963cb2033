// Package embedder provides text embedding clients for vector representations.
//
// # Supported Providers
//
//   - OpenAI: text-embedding-3-small, text-embedding-3-large, text-embedding-ada-002,
//     or any OpenAI-compatible endpoint via BaseURL
//   - EmbedEverything: local models loaded in process
//
// # Usage
//
//	client := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:     "text-embedding-3-small",
//	    BatchSize: 100,
//	})
//
//	vec, err := client.EmbedSingle(ctx, "where does alice work?")
//
// # Caching
//
// CachedClient wraps any Client with a badger-backed cache keyed by model and
// text, so repeated queries skip the provider round trip.
package embedder
