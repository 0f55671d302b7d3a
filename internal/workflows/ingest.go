package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"researchgraph/internal/activities"
	"researchgraph/internal/models"
)

const QueryGetProgress = "GetProgress"

const defaultEmbedBatch = 32

// PaperIngestWorkflow turns one arXiv paper into searchable passages:
// metadata fetch, PDF download, text extraction, chunking, embedding, and a
// transactional passage replace. Job status transitions are recorded around
// the run so the API can report progress even after the workflow is gone.
func PaperIngestWorkflow(ctx workflow.Context, input PaperIngestInput) (PaperIngestResult, error) {
	progress := PaperIngestProgress{
		ArxivID:     input.ArxivID,
		CurrentStep: "init",
		Status:      "processing",
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (PaperIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return PaperIngestResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	setJob := func(status, errMsg string) {
		_ = workflow.ExecuteActivity(ctx, "UpdateJobStatusActivity", activities.UpdateJobStatusInput{
			JobID:        input.JobID,
			Status:       status,
			ErrorMessage: errMsg,
		}).Get(ctx, nil)
	}
	fail := func(step string, err error) (PaperIngestResult, error) {
		progress.Status = "failed"
		progress.FailReason = err.Error()
		setJob(models.JobFailed, step+": "+err.Error())
		return PaperIngestResult{}, err
	}

	setJob(models.JobRunning, "")

	progress.CurrentStep = "fetch_metadata"
	var fetched activities.FetchPaperOutput
	if err := workflow.ExecuteActivity(ctx, "FetchPaperActivity", activities.FetchPaperInput{
		ArxivID: input.ArxivID,
	}).Get(ctx, &fetched); err != nil {
		return fail("fetch_metadata", err)
	}
	progress.PaperID = fetched.PaperID

	progress.CurrentStep = "download_pdf"
	var downloaded activities.DownloadPDFOutput
	if err := workflow.ExecuteActivity(ctx, "DownloadPDFActivity", activities.DownloadPDFInput{
		PaperID: fetched.PaperID,
		ArxivID: input.ArxivID,
		PDFURL:  fetched.PDFURL,
	}).Get(ctx, &downloaded); err != nil {
		return fail("download_pdf", err)
	}

	progress.CurrentStep = "extract_text"
	var extracted activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{
		Path: downloaded.Path,
	}).Get(ctx, &extracted); err != nil {
		return fail("extract_text", err)
	}

	progress.CurrentStep = "chunk_text"
	var chunked activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		PaperID:      fetched.PaperID,
		Text:         extracted.Text,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunked); err != nil {
		return fail("chunk_text", err)
	}
	progress.ChunksTotal = len(chunked.Chunks)

	progress.CurrentStep = "embed_passages"
	batch := input.EmbedBatch
	if batch <= 0 {
		batch = defaultEmbedBatch
	}
	vectors := make([][]float32, 0, len(chunked.Chunks))
	for start := 0; start < len(chunked.Chunks); start += batch {
		end := start + batch
		if end > len(chunked.Chunks) {
			end = len(chunked.Chunks)
		}
		inputs := make([]string, 0, end-start)
		for _, c := range chunked.Chunks[start:end] {
			inputs = append(inputs, c.Text)
		}
		var embedded activities.EmbedPassagesOutput
		if err := workflow.ExecuteActivity(ctx, "EmbedPassagesActivity", activities.EmbedPassagesInput{
			Inputs: inputs,
		}).Get(ctx, &embedded); err != nil {
			return fail("embed_passages", err)
		}
		vectors = append(vectors, embedded.Vectors...)
		progress.ChunksDone = len(vectors)
	}

	progress.CurrentStep = "store_passages"
	if err := workflow.ExecuteActivity(ctx, "UpsertPassagesActivity", activities.UpsertPassagesInput{
		PaperID: fetched.PaperID,
		Chunks:  chunked.Chunks,
		Vectors: vectors,
	}).Get(ctx, nil); err != nil {
		return fail("store_passages", err)
	}

	progress.CurrentStep = "mark_processed"
	if err := workflow.ExecuteActivity(ctx, "MarkPaperProcessedActivity", activities.MarkPaperProcessedInput{
		PaperID:    fetched.PaperID,
		ChunkCount: len(chunked.Chunks),
	}).Get(ctx, nil); err != nil {
		return fail("mark_processed", err)
	}

	progress.CurrentStep = "done"
	progress.Status = "completed"
	setJob(models.JobCompleted, "")

	return PaperIngestResult{PaperID: fetched.PaperID, ChunkCount: len(chunked.Chunks)}, nil
}
