// Package filedex is the embedded SDK: it wires the full ingestion pipeline
// (blob storage, parser, chunker, task queue, embedding gateway, vector
// store) into a single in-process client backed by Redis.
//
// Minimal usage:
//
//	client, err := filedex.New(ctx,
//		filedex.WithRedis("localhost:6379", ""),
//		filedex.WithBlobDir("./data/blobs"),
//		filedex.WithOpenAI(os.Getenv("OPENAI_API_KEY"), "text-embedding-3-small"),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	col, err := client.CreateCollection(ctx, "docs", 1536, "cosine", "openai", "")
//	file, err := client.UploadFile(ctx, "docs", "report.pdf", "application/pdf", reader)
//	// poll client.FileStatus(ctx, file.ID) until ready, then:
//	hits, err := client.Query(ctx, "docs", "what does the report conclude?", 5)
package filedex
