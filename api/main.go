package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wlwv-tools/school-calendar/backend/internal/config"
	"github.com/wlwv-tools/school-calendar/backend/internal/elasticsearch"
	"github.com/wlwv-tools/school-calendar/backend/internal/ingest"
	"github.com/wlwv-tools/school-calendar/backend/internal/logger"
	"github.com/wlwv-tools/school-calendar/backend/internal/models"
	"github.com/wlwv-tools/school-calendar/backend/internal/source"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, elasticsearch.Indexes{
		Events:    cfg.EventsIndex,
		DayTypes:  cfg.DayTypesIndex,
		Materials: cfg.MaterialsIndex,
		Reports:   cfg.ReportsIndex,
	}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := esClient.EnsureIndexes(startupCtx); err != nil {
		log.Error("ensure indexes", slog.Any("err", err))
	}
	startupCancel()

	strategies, err := source.Load(cfg.StrategiesPath)
	if err != nil {
		log.Error("load strategies", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:        log,
		cfg:        cfg,
		es:         esClient,
		runner:     ingest.NewRunner(esClient, nil, log),
		fetcher:    source.NewClient(cfg.FetchTimeout, log),
		strategies: strategies,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", srv.handleScrape)
		r.Get("/events", srv.handleListEvents)
		r.Post("/events", srv.handleCreateEvent)
		r.Get("/day-types", srv.handleListDayTypes)
		r.Post("/day-types", srv.handlePutDayType)
		r.Get("/materials", srv.handleListMaterials)
		r.Post("/materials", srv.handleCreateMaterial)
		r.Delete("/materials/{id}", srv.handleDeleteMaterial)
	})

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      3 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log        *slog.Logger
	cfg        *config.API
	es         *elasticsearch.Client
	runner     *ingest.Runner
	fetcher    *source.Client
	strategies []source.Strategy
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.es.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	TargetMonth string `json:"targetMonth"` // YYYY-MM
	Department  string `json:"department"`
	School      string `json:"school"`
	FetchOnly   bool   `json:"fetchOnly"`

	// Optional inline payload; when set the source strategies are
	// skipped and this body goes straight through the pipeline.
	RawPayload      string `json:"rawPayload,omitempty"`
	ContentTypeHint string `json:"contentTypeHint,omitempty"`
}

func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	school := models.School(strings.TrimSpace(req.School))
	if !school.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "school must be wlhs or wvhs"})
		return
	}
	if _, err := time.Parse("2006-01", req.TargetMonth); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "targetMonth must be YYYY-MM"})
		return
	}

	department := strings.TrimSpace(req.Department)
	if department == "" {
		department = s.cfg.DefaultDepartment
	}

	in := ingest.Input{
		School:     school,
		Department: department,
		Month:      req.TargetMonth,
		FetchOnly:  req.FetchOnly,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var report *ingest.Report
	if req.RawPayload != "" {
		in.Payload = []byte(req.RawPayload)
		in.ContentType = req.ContentTypeHint
		report = s.runner.Run(ctx, in)
	} else {
		report = s.runner.RunStrategies(ctx, s.fetcher, s.strategies, in)
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	school, ok := schoolParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := s.es.SearchEvents(ctx, school)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if events == nil {
		events = []models.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

type createEventRequest struct {
	School      string `json:"school"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Title       string `json:"title"`
	Department  string `json:"department"`
	Description string `json:"description"`
}

func (s *server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	school := models.School(strings.TrimSpace(req.School))
	if !school.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "school must be wlhs or wvhs"})
		return
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date and title are required"})
		return
	}

	ev := models.Event{
		School:      school,
		Date:        req.Date,
		Time:        req.Time,
		Title:       req.Title,
		Department:  req.Department,
		Description: req.Description,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	exists, err := s.es.ExistsEvent(ctx, ev.School, ev.Date, ev.Title)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "event already exists"})
		return
	}

	id, err := s.es.InsertEvent(ctx, ev)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	ev.ID = id

	writeJSON(w, http.StatusCreated, ev)
}

func (s *server) handleListDayTypes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dayTypes, err := s.es.ListDayTypes(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if dayTypes == nil {
		dayTypes = []models.DayType{}
	}

	writeJSON(w, http.StatusOK, dayTypes)
}

func (s *server) handlePutDayType(w http.ResponseWriter, r *http.Request) {
	var dt models.DayType
	if err := json.NewDecoder(r.Body).Decode(&dt); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if _, err := time.Parse("2006-01-02", dt.Date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// An empty type clears the label for that date.
	if strings.TrimSpace(dt.Type) == "" {
		if err := s.es.DeleteDayType(ctx, dt.Date); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}

	if err := s.es.PutDayType(ctx, dt); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, dt)
}

func (s *server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	school, ok := schoolParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	materials, err := s.es.ListMaterials(ctx, school)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if materials == nil {
		materials = []models.Material{}
	}

	writeJSON(w, http.StatusOK, materials)
}

func (s *server) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var m models.Material
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	if !m.School.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "school must be wlhs or wvhs"})
		return
	}
	if m.GradeLevel < 9 || m.GradeLevel > 12 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "grade_level must be between 9 and 12"})
		return
	}
	if strings.TrimSpace(m.Link) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "link is required"})
		return
	}
	if _, err := time.Parse("2006-01-02", m.Date); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := s.es.InsertMaterial(ctx, m)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	m.ID = id

	writeJSON(w, http.StatusCreated, m)
}

func (s *server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.es.DeleteMaterial(ctx, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func schoolParam(w http.ResponseWriter, r *http.Request) (models.School, bool) {
	school := models.School(strings.TrimSpace(r.URL.Query().Get("school")))
	if !school.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "school must be wlhs or wvhs"})
		return "", false
	}
	return school, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
