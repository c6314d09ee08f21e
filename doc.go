// Package lattice provides a hybrid retrieval engine with a temporal
// knowledge graph for Go.
//
// Lattice combines four independent retrieval strategies (vector similarity,
// concept lookup, knowledge graph traversal, and lexical matching) and fuses
// their results with query-adaptive weights. The knowledge graph stores
// weighted, temporally versioned relations with cycle prevention, traversal,
// path finding and snapshots.
//
// # Basic Usage
//
// Create an engine with the collaborators you have available:
//
//	// Create an embedder for the vector strategy
//	embedderClient := embedder.NewOpenAIEmbedder("your-api-key", embedder.Config{
//		Model: "text-embedding-3-small",
//	})
//
//	// Create LLM collaborators for intent classification and reranking
//	client, err := nlp.NewOpenAIClient("your-api-key", nlp.ModelConfig{Model: openai.GPT4oMini})
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine := lattice.NewEngine(
//		lattice.WithEmbedder(embedderClient),
//		lattice.WithClassifier(nlp.NewClassifier(client, nil)),
//		lattice.WithReranker(nlp.NewLLMReranker(client, nil), 20),
//	)
//	defer engine.Close()
//
// Every option is optional: without collaborators the engine degrades to
// heuristic query analysis, three strategies and no reranking.
//
// # Adding Content
//
// Items are the retrievable content units:
//
//	err = engine.UpsertItem(ctx, &search.Item{
//		ItemID:    "doc-1",
//		TenantID:  "acme",
//		ProjectID: "docs",
//		Content:   "Redis evicts keys according to the configured maxmemory policy",
//		Concepts:  []string{"caching", "eviction"},
//		Tags:      []string{"redis"},
//	})
//
// # Searching
//
// Search runs the full pipeline and reports how each stage behaved:
//
//	resp, err := engine.Search(ctx, &types.SearchRequest{
//		TenantID:  "acme",
//		ProjectID: "docs",
//		Query:     "how does redis decide what to evict?",
//		K:         10,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, result := range resp.Results {
//		fmt.Printf("%2d %.3f %s\n", result.Rank, result.FinalScore, result.ItemID)
//	}
//
// # Knowledge Graph
//
// The graph store is exposed for admin operations:
//
//	g := engine.Graph()
//	g.AddNode(ctx, "acme", "docs", "redis", "Tech", nil)
//	g.AddNode(ctx, "acme", "docs", "eviction", "Concept", nil)
//	g.AddEdge(ctx, "acme", "docs", graph.EdgeSpec{
//		SourceKey: "redis", TargetKey: "eviction",
//		Relation: "relates_to", Weight: 0.8, Confidence: 0.9,
//	})
//
// Cycles are rejected with a typed CycleError carrying the offending path;
// duplicate active edges for the same (source, target, relation) are rejected
// until the existing edge is deactivated.
package lattice
