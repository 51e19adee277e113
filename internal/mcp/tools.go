package mcp

// IngestInput defines the input schema for the ingest_document tool.
type IngestInput struct {
	Path    string `json:"path,omitempty" jsonschema:"local path of the document"`
	URL     string `json:"url,omitempty" jsonschema:"http(s) URL of a PDF document"`
	DocType string `json:"doc_type,omitempty" jsonschema:"pdf, word or text; inferred from the path extension when empty"`
}

// IngestOutput defines the output schema for the ingest_document tool.
type IngestOutput struct {
	SessionID     string `json:"session_id" jsonschema:"session to pass to query_document"`
	DocumentType  string `json:"document_type" jsonschema:"detected document schema"`
	ChunksCreated int    `json:"chunks_created" jsonschema:"number of indexed passages"`
}

// QueryInput defines the input schema for the query_document tool.
type QueryInput struct {
	SessionID string `json:"session_id" jsonschema:"session returned by ingest_document"`
	Query     string `json:"query" jsonschema:"question about the document"`
}

// QueryOutput defines the output schema for the query_document tool.
type QueryOutput struct {
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one cited passage.
type SourceOutput struct {
	Page  int     `json:"page" jsonschema:"zero-based segment (page) number"`
	Text  string  `json:"text"`
	Score float64 `json:"score" jsonschema:"cosine similarity to the question, for display"`
}

// CloseInput defines the input schema for the close_session tool.
type CloseInput struct {
	SessionID string `json:"session_id"`
}

// CloseOutput defines the output schema for the close_session tool.
type CloseOutput struct {
	Closed bool `json:"closed"`
}
