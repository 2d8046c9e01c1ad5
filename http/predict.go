package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"placementai/ml"
)

const (
	msgModelNotLoaded  = "Model not loaded"
	msgInferenceFailed = "Inference engine error"
	msgInvalidBody     = "Invalid request body"
)

type valueRange struct {
	min, max float64
}

// inputRanges 与前端表单一致的取值范围, 推理前裁剪
var inputRanges = map[string]valueRange{
	ml.FeatureCGPA:           {0, 10},
	ml.FeatureIQ:             {50, 200},
	ml.FeatureProjects:       {0, 20},
	ml.FeatureInternships:    {0, 24},
	ml.FeatureTechScore:      {0, 100},
	ml.FeatureCommScore:      {0, 100},
	ml.FeatureBacklogs:       {0, 10},
	ml.FeatureHackathons:     {0, 20},
	ml.FeatureCertifications: {0, 20},
}

// PredictResponse 预测响应, probability 为两位小数的百分比字符串
type PredictResponse struct {
	Placed      bool   `json:"placed"`
	Probability string `json:"probability"`
	Message     string `json:"message"`
}

func (a *api) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	fail := func(status int, message string, err error) {
		a.Metrics.RecordPrediction(false, time.Since(start), err)
		writeError(w, status, message)
	}

	if a.Predictor == nil || a.Predictor.Artifact() == nil {
		fail(http.StatusServiceUnavailable, msgModelNotLoaded, ml.ErrArtifactNotLoaded)
		return
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		if err == nil {
			err = errors.New("request body is null")
		}
		fail(http.StatusBadRequest, msgInvalidBody, err)
		return
	}

	input, err := parseFeatures(body, a.Predictor.Artifact().FeatureOrder)
	if err != nil {
		status, message := predictionError(err)
		fail(status, message, err)
		return
	}

	result, err := a.Predictor.Predict(r.Context(), input)
	if err != nil {
		status, message := predictionError(err)
		if status == http.StatusInternalServerError {
			a.Logger.Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
		}
		fail(status, message, err)
		return
	}
	a.Metrics.RecordPrediction(result.Placed, time.Since(start), nil)

	if a.Store != nil {
		if err := a.Store.SavePrediction(r.Context(), GetRequestID(r.Context()), input, result); err != nil {
			a.Logger.Warn("failed to record prediction", zap.Error(err))
		}
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		Placed:      result.Placed,
		Probability: result.ProbabilityText,
		Message:     result.Message,
	})
}

// parseFeatures 按特征顺序取值并裁剪到表单范围, 多余字段忽略
func parseFeatures(body map[string]json.RawMessage, order []string) (map[string]float64, error) {
	input, err := ml.DecodeFeatures(body, order)
	if err != nil {
		return nil, err
	}
	for name, value := range input {
		input[name] = clamp(name, value)
	}
	return input, nil
}

func clamp(name string, value float64) float64 {
	bounds, ok := inputRanges[name]
	if !ok {
		return value
	}
	return math.Min(math.Max(value, bounds.min), bounds.max)
}

// predictionError 将推理错误映射为状态码和对外消息, 不暴露内部细节
func predictionError(err error) (int, string) {
	if name, ok := ml.IsMissingFeature(err); ok {
		return http.StatusBadRequest, "Missing feature: " + name
	}
	if name, ok := ml.IsInvalidValue(err); ok {
		return http.StatusBadRequest, "Invalid value for feature: " + name
	}
	if errors.Is(err, ml.ErrArtifactNotLoaded) {
		return http.StatusServiceUnavailable, msgModelNotLoaded
	}
	return http.StatusInternalServerError, msgInferenceFailed
}
