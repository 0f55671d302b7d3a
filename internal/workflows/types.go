package workflows

type PaperIngestInput struct {
	ArxivID      string `json:"arxiv_id"`
	JobID        string `json:"job_id"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
	EmbedBatch   int    `json:"embed_batch"`
}

type PaperIngestResult struct {
	PaperID    string `json:"paper_id"`
	ChunkCount int    `json:"chunk_count"`
}

type PaperIngestProgress struct {
	ArxivID     string `json:"arxiv_id"`
	PaperID     string `json:"paper_id,omitempty"`
	CurrentStep string `json:"current_step"`
	Status      string `json:"status"`
	ChunksTotal int    `json:"chunks_total"`
	ChunksDone  int    `json:"chunks_done"`
	FailReason  string `json:"fail_reason,omitempty"`
}
