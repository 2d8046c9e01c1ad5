package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"placementai/db"
	"placementai/ml"
	"placementai/monitoring"
	"placementai/scheduler"
)

// ModelSource 提供当前加载的模型
type ModelSource interface {
	Artifact() *ml.ModelArtifact
}

// Predictor 执行推理
type Predictor interface {
	ml.ModelProvider
	ModelSource
}

// TrainingRunner 触发一次重训练并报告调度状态
type TrainingRunner interface {
	RunOnce(ctx context.Context) (*ml.TrainingReport, error)
	Status() scheduler.Status
}

// AuditStore 审计存储
type AuditStore interface {
	SavePrediction(ctx context.Context, requestID string, input map[string]float64, result *ml.PredictionResult) error
	RecentTrainingRuns(ctx context.Context, limit int) ([]db.TrainingLog, error)
	PredictionStats(ctx context.Context) (db.PredictionStats, error)
}

// Dependencies 处理器依赖; Predictor 之外均可为空
type Dependencies struct {
	Predictor Predictor
	Trainer   TrainingRunner
	Store     AuditStore
	Metrics   *monitoring.MetricsCollector
	Events    *monitoring.EventHub
	Logger    *zap.Logger
}

type api struct {
	Dependencies
}

func RegisterHandlers(mux *http.ServeMux, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitoring.NewMetricsCollector()
	}
	a := &api{Dependencies: deps}
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("POST /api/predict", a.handlePredict)
	mux.HandleFunc("GET /api/model", a.handleModel)
	mux.HandleFunc("POST /api/train", a.handleTrain)
	mux.HandleFunc("GET /api/train", a.handleTrainStatus)
	mux.HandleFunc("GET /api/training/runs", a.handleTrainingRuns)
	mux.HandleFunc("GET /api/metrics", a.handleMetrics)
	if deps.Events != nil {
		mux.HandleFunc("GET /api/ws/events", deps.Events.HandleWebSocket)
	}
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": a.Predictor != nil && a.Predictor.Artifact() != nil,
	})
}

func (a *api) handleModel(w http.ResponseWriter, r *http.Request) {
	if a.Predictor == nil {
		writeError(w, http.StatusServiceUnavailable, msgModelNotLoaded)
		return
	}
	artifact := a.Predictor.Artifact()
	if artifact == nil {
		writeError(w, http.StatusServiceUnavailable, msgModelNotLoaded)
		return
	}
	respondJSON(w, http.StatusOK, artifact)
}

func (a *api) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	runs, err := a.Store.RecentTrainingRuns(r.Context(), limit)
	if err != nil {
		a.Logger.Error("failed to load training runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load training runs")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *api) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "prometheus" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(a.Metrics.ExportPrometheus()))
		return
	}

	snapshot := a.Metrics.Snapshot()
	if a.Store != nil {
		if stats, err := a.Store.PredictionStats(r.Context()); err == nil {
			snapshot["predictions"] = stats
		} else {
			a.Logger.Warn("failed to load prediction stats", zap.Error(err))
		}
	}
	if a.Events != nil {
		snapshot["event_clients"] = a.Events.ClientCount()
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
