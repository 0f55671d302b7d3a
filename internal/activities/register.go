package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.FetchPaperActivity)
	w.RegisterActivity(a.DownloadPDFActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedPassagesActivity)
	w.RegisterActivity(a.UpsertPassagesActivity)
	w.RegisterActivity(a.MarkPaperProcessedActivity)
	w.RegisterActivity(a.UpdateJobStatusActivity)
}
