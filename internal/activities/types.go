package activities

type FetchPaperInput struct {
	ArxivID string `json:"arxiv_id"`
}

type FetchPaperOutput struct {
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	PDFURL  string `json:"pdf_url"`
}

type DownloadPDFInput struct {
	PaperID string `json:"paper_id"`
	ArxivID string `json:"arxiv_id"`
	PDFURL  string `json:"pdf_url"`
}

type DownloadPDFOutput struct {
	Path string `json:"path"`
}

type ExtractTextInput struct {
	Path string `json:"path"`
}

type ExtractTextOutput struct {
	Text string `json:"text"`
}

type ChunkItem struct {
	PassageID  string `json:"passage_id"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

type ChunkTextInput struct {
	PaperID      string `json:"paper_id"`
	Text         string `json:"text"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

type ChunkTextOutput struct {
	Chunks []ChunkItem `json:"chunks"`
}

type EmbedPassagesInput struct {
	Inputs []string `json:"inputs"`
}

type EmbedPassagesOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type UpsertPassagesInput struct {
	PaperID string      `json:"paper_id"`
	Chunks  []ChunkItem `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
}

type MarkPaperProcessedInput struct {
	PaperID    string `json:"paper_id"`
	ChunkCount int    `json:"chunk_count"`
}

type UpdateJobStatusInput struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}
