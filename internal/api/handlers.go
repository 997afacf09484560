package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/dealbrief/internal/analysis"
	"github.com/sells-group/dealbrief/internal/model"
	"github.com/sells-group/dealbrief/internal/store"
)

type createAnalysisRequest struct {
	DealID string `json:"deal_id"`
	Type   string `json:"analysis_type"`
}

type createAnalysisResponse struct {
	AnalysisID string          `json:"analysis_id"`
	DealID     string          `json:"deal_id"`
	DealName   string          `json:"deal_name"`
	Type       string          `json:"analysis_type"`
	Sections   []model.Section `json:"sections"`
	CreatedAt  time.Time       `json:"created_at"`
}

type flatSearchResponse struct {
	Grouped  bool             `json:"grouped"`
	Analyses []model.Analysis `json:"analyses"`
}

type groupedSearchResponse struct {
	Grouped bool        `json:"grouped"`
	Deals   []dealGroup `json:"deals"`
}

type dealGroup struct {
	DealID          string           `json:"deal_id"`
	DealName        string           `json:"deal_name"`
	Analyses        []model.Analysis `json:"analyses"`
	LatestCreatedAt time.Time        `json:"latest_created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAnalysisTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListAnalysisTypes(r.Context())
	if err != nil {
		zap.L().Error("api: list analysis types", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load analysis types")
		return
	}
	if types == nil {
		types = []model.AnalysisType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleGetAnalysisType(w http.ResponseWriter, r *http.Request) {
	typeID := chi.URLParam(r, "typeID")
	typ, err := s.store.GetAnalysisType(r.Context(), typeID)
	if err != nil {
		zap.L().Error("api: get analysis type", zap.String("type_id", typeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load analysis type")
		return
	}
	if typ == nil {
		writeError(w, http.StatusNotFound, "Analysis type not found")
		return
	}
	writeJSON(w, http.StatusOK, typ)
}

// handleCreateAnalysis runs the whole pipeline for one deal: fetch the
// CRM context, build the document, call the model, persist the result.
// Upstream failures map to 502 so the UI can distinguish "our bug"
// from "HubSpot or Claude is down".
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DealID == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: deal_id")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: analysis_type")
		return
	}

	ctx := r.Context()
	typ, err := s.store.GetAnalysisType(ctx, req.Type)
	if err != nil {
		zap.L().Error("api: get analysis type", zap.String("type_id", req.Type), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load analysis type")
		return
	}
	if typ == nil {
		writeError(w, http.StatusNotFound, "Analysis type not found")
		return
	}

	res, err := s.briefer.Build(ctx, req.DealID)
	if err != nil {
		zap.L().Error("api: build deal document",
			zap.String("deal_id", req.DealID),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to fetch deal context")
		return
	}

	run, err := s.runner.Analyze(ctx, res.Document, typ)
	if err != nil {
		zap.L().Error("api: run analysis",
			zap.String("deal_id", req.DealID),
			zap.String("type_id", typ.ID),
			zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to run analysis")
		return
	}

	a := &model.Analysis{
		ID:            analysis.NewAnalysisID(req.DealID, typ.ID),
		DealID:        req.DealID,
		DealName:      res.Deal.Name,
		Type:          typ.ID,
		UserInput:     res.Document,
		SystemPrompt:  typ.SystemPrompt,
		FullResponse:  run.Response,
		PromptVersion: typ.Version,
		Metadata: map[string]any{
			"model":         s.runner.Model(),
			"input_tokens":  run.Usage.InputTokens,
			"output_tokens": run.Usage.OutputTokens,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveAnalysis(ctx, a); err != nil {
		zap.L().Error("api: save analysis", zap.String("analysis_id", a.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save analysis")
		return
	}

	writeJSON(w, http.StatusOK, createAnalysisResponse{
		AnalysisID: a.ID,
		DealID:     a.DealID,
		DealName:   a.DealName,
		Type:       a.Type,
		Sections:   analysis.ParseSections(run.Response),
		CreatedAt:  a.CreatedAt,
	})
}

func (s *Server) handleSearchAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AnalysisFilter{
		Query:    q.Get("q"),
		TypeID:   q.Get("model"),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}
	grouped := true
	if v := q.Get("grouped"); v != "" {
		grouped = strings.EqualFold(v, "true")
	}

	analyses, err := s.store.SearchAnalyses(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: search analyses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to search analyses")
		return
	}
	if analyses == nil {
		analyses = []model.Analysis{}
	}

	if !grouped {
		writeJSON(w, http.StatusOK, flatSearchResponse{Grouped: false, Analyses: analyses})
		return
	}
	writeJSON(w, http.StatusOK, groupedSearchResponse{Grouped: true, Deals: groupByDeal(analyses)})
}

// groupByDeal buckets analyses per deal, keeping the store's
// newest-first order inside each group and ordering groups by their
// most recent analysis.
func groupByDeal(analyses []model.Analysis) []dealGroup {
	index := make(map[string]int)
	groups := make([]dealGroup, 0)
	for _, a := range analyses {
		i, ok := index[a.DealID]
		if !ok {
			i = len(groups)
			index[a.DealID] = i
			groups = append(groups, dealGroup{
				DealID:          a.DealID,
				DealName:        a.DealName,
				LatestCreatedAt: a.CreatedAt,
			})
		}
		groups[i].Analyses = append(groups[i].Analyses, a)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LatestCreatedAt.After(groups[j].LatestCreatedAt)
	})
	return groups
}

func (s *Server) handleSaveFeedback(w http.ResponseWriter, r *http.Request) {
	var f model.Feedback
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case f.AnalysisID == "":
		writeError(w, http.StatusBadRequest, "Missing required field: analysis_id")
		return
	case f.SectionID == "":
		writeError(w, http.StatusBadRequest, "Missing required field: section_id")
		return
	case f.SectionTitle == "":
		writeError(w, http.StatusBadRequest, "Missing required field: section_title")
		return
	case f.Rating == "":
		writeError(w, http.StatusBadRequest, "Missing required field: feedback")
		return
	case !f.Rating.Valid():
		writeError(w, http.StatusBadRequest, "feedback must be 'up' or 'down'")
		return
	}

	if err := s.store.SaveFeedback(r.Context(), &f); err != nil {
		zap.L().Error("api: save feedback",
			zap.String("analysis_id", f.AnalysisID),
			zap.String("section_id", f.SectionID),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.FeedbackStats(r.Context())
	if err != nil {
		zap.L().Error("api: feedback stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load feedback stats")
		return
	}
	if stats == nil {
		stats = []model.FeedbackStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}
