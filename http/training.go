package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"placementai/scheduler"
)

// handleTrain 同步执行一次重训练, 已有训练运行时返回 409
func (a *api) handleTrain(w http.ResponseWriter, r *http.Request) {
	if a.Trainer == nil {
		writeError(w, http.StatusServiceUnavailable, "training not configured")
		return
	}

	report, err := a.Trainer.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrTrainingInProgress) {
			writeError(w, http.StatusConflict, "Training already in progress")
			return
		}
		a.Logger.Error("training request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Training failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     report.RunID,
		"samples":    report.Samples,
		"accuracy":   report.Train.Accuracy,
		"test":       report.Test,
		"final_loss": report.FinalLoss,
		"duration":   report.Duration.String(),
	})
}

// handleTrainStatus 返回重训练调度状态
func (a *api) handleTrainStatus(w http.ResponseWriter, r *http.Request) {
	if a.Trainer == nil {
		writeError(w, http.StatusServiceUnavailable, "training not configured")
		return
	}
	respondJSON(w, http.StatusOK, a.Trainer.Status())
}
