// Package knowledge implements the write and read paths of the retrieval
// pipeline.
//
// The write path is the Ingestor: persist a document, embed its content, and
// upsert the derived record into the vector index. The three steps are
// sequential with no compensating transaction; if the document persists but
// embedding or indexing fails, the caller receives a *PartialError carrying
// the document id so it can retry the embedding step without re-creating the
// document. A document becomes retrievable only after the index upsert
// completes.
//
// The read path is the Retriever: embed the query with the same embedder
// used for ingestion and run a top-K similarity search. Retrieval is
// best-effort enrichment: an unreachable index or a failing embedder
// degrades to an empty result and a log line, never an error to the caller.
//
// Both take their external capabilities (document store, embedder, index)
// as constructor arguments.
package knowledge
