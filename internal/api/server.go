package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"researchgraph/internal/arxiv"
	"researchgraph/internal/config"
	"researchgraph/internal/discover"
	"researchgraph/internal/graph"
	"researchgraph/internal/metrics"
	"researchgraph/internal/models"
	"researchgraph/internal/providers"
	"researchgraph/internal/rag"
	"researchgraph/internal/storage"
	"researchgraph/internal/vector"
	"researchgraph/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	paperRepo *storage.PaperRepo
	jobRepo   *storage.JobRepo
	pipeline  *rag.Pipeline
	discover  *discover.Service
	temporal  tclient.Client
	log       *zap.Logger
}

func NewServer(cfg config.Config, log *zap.Logger) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	paperRepo := storage.NewPaperRepo(db)
	passageRepo := storage.NewPassageRepo(db)
	cacheRepo := storage.NewCacheRepo(db)
	searcher := vector.NewSearcher(db.Pool)
	assembler := rag.NewAssembler(passageRepo, searcher, pm.Embedder(), cfg.MaxContextPassages, cfg.EmbedDim)
	pipeline := rag.NewPipeline(paperRepo, passageRepo, cacheRepo, assembler, pm.LLM(), log)
	arxivClient := arxiv.NewClient(cfg.ArxivAPIBase)

	return &Server{
		cfg:       cfg,
		db:        db,
		paperRepo: paperRepo,
		jobRepo:   storage.NewJobRepo(db),
		pipeline:  pipeline,
		discover:  discover.NewService(arxivClient, paperRepo, pm.LLM(), log),
		temporal:  tc,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/discover", s.handleDiscover)
	mux.HandleFunc("/graph/", s.handleGraph)
	mux.HandleFunc("/papers/", s.handlePapersScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.PaperID = strings.TrimSpace(req.PaperID)
	if req.PaperID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("paper_id and question are required"))
		return
	}

	start := time.Now()
	resp, err := s.pipeline.Ask(r.Context(), req)
	metrics.AskDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req discover.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	resp, err := s.discover.Discover(r.Context(), req)
	if err != nil {
		var nf *rag.NotFoundError
		if errors.As(err, &nf) {
			s.writeDomainErr(w, err)
			return
		}
		if strings.Contains(err.Error(), "required") || strings.Contains(err.Error(), "must be between") {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	paperID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/graph/"), "/")
	if paperID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	center, found, err := s.paperRepo.GetPaper(r.Context(), paperID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		s.writeDomainErr(w, &rag.NotFoundError{Resource: "paper", ID: paperID, Reason: "paper does not exist"})
		return
	}

	var satellites []models.Paper
	if related := graph.RelatedArxivIDs(center); len(related) > 0 {
		papers, err := s.paperRepo.ListPapersByArxivIDs(r.Context(), related)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		satellites = papers
	}
	writeJSON(w, http.StatusOK, graph.Build(center, satellites))
}

func (s *Server) handlePapersScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/papers/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	paperID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		p, found, err := s.paperRepo.GetPaper(r.Context(), paperID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			s.writeDomainErr(w, &rag.NotFoundError{Resource: "paper", ID: paperID, Reason: "paper does not exist"})
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	if len(parts) == 2 && parts[1] == "ingest" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleIngest(w, r, paperID)
		return
	}
	if len(parts) == 3 && parts[1] == "ingest" && parts[2] == "status" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleIngestStatus(w, r, paperID)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, arxivID string) {
	job, err := s.jobRepo.CreateJob(r.Context(), arxivID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       ingestWorkflowID(arxivID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.PaperIngestWorkflow, workflows.PaperIngestInput{
		ArxivID:      arxivID,
		JobID:        job.ID,
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request, arxivID string) {
	var prog workflows.PaperIngestProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), ingestWorkflowID(arxivID), "", workflows.QueryGetProgress)
	if err == nil {
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}

	// No live workflow to query; fall back to the persisted job record.
	job, found, jErr := s.jobRepo.GetLatestByArxivID(r.Context(), arxivID)
	if jErr != nil {
		writeErr(w, http.StatusInternalServerError, jErr)
		return
	}
	if !found {
		s.writeDomainErr(w, &rag.NotFoundError{Resource: "ingestion job", ID: arxivID, Reason: "no ingestion started"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func ingestWorkflowID(arxivID string) string {
	return "ingest-" + strings.ReplaceAll(arxivID, "/", "_")
}

// writeDomainErr maps pipeline error types onto HTTP statuses. The wrapped
// upstream cause is logged but never leaked to the caller.
func (s *Server) writeDomainErr(w http.ResponseWriter, err error) {
	var (
		nf *rag.NotFoundError
		rl *rag.RateLimitedError
		up *rag.UpstreamError
	)
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		writeErr(w, http.StatusBadRequest, err)
	case errors.As(err, &nf):
		writeErr(w, http.StatusNotFound, err)
	case errors.As(err, &rl):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{
				"code":                "RG-API-4029",
				"message":             "Generation quota is exhausted. Retry shortly.",
				"retry_after_seconds": int(rl.RetryAfter.Seconds()),
			},
		})
	case errors.As(err, &up):
		s.log.Error("upstream failure", zap.String("op", up.Op), zap.Error(up.Err))
		writeErr(w, http.StatusBadGateway, err)
	default:
		s.log.Error("request failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "RG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "RG-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "RG-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "RG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "RG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "RG-API-4004"
		msg = "Requested resource was not found."
		if err != nil {
			var nf *rag.NotFoundError
			if errors.As(err, &nf) {
				msg = "Requested " + nf.Resource + " was not found."
			}
		}
	case status == http.StatusConflict:
		code = "RG-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "RG-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "RG-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "question is empty"):
			msg = "Question must not be empty."
		case strings.Contains(raw, "paper_id and question are required"):
			msg = "Both paper and question are required."
		case strings.Contains(raw, "topic is required"):
			msg = "Topic is required."
		case strings.Contains(raw, "background is required"):
			msg = "Background is required."
		case strings.Contains(raw, "count must be between"):
			msg = "Paper count is out of range."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
