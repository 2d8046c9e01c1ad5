package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placementai/db"
	"placementai/inference"
	"placementai/ml"
	"placementai/monitoring"
	"placementai/scheduler"
)

type fakePredictor struct {
	artifact *ml.ModelArtifact
	result   *ml.PredictionResult
	err      error

	mu       sync.Mutex
	received map[string]float64
}

func (f *fakePredictor) Predict(ctx context.Context, features map[string]float64) (*ml.PredictionResult, error) {
	f.mu.Lock()
	f.received = features
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakePredictor) Artifact() *ml.ModelArtifact {
	return f.artifact
}

type fakeTrainer struct {
	report *ml.TrainingReport
	err    error
	status scheduler.Status
}

func (f *fakeTrainer) RunOnce(ctx context.Context) (*ml.TrainingReport, error) {
	return f.report, f.err
}

func (f *fakeTrainer) Status() scheduler.Status {
	return f.status
}

func placementArtifact(t *testing.T) *ml.ModelArtifact {
	t.Helper()
	stats := ml.NormalizationStats{
		ml.FeatureCGPA:           {Min: 5, Max: 10},
		ml.FeatureIQ:             {Min: 80, Max: 139},
		ml.FeatureProjects:       {Min: 0, Max: 7},
		ml.FeatureInternships:    {Min: 0, Max: 3},
		ml.FeatureTechScore:      {Min: 40, Max: 99},
		ml.FeatureCommScore:      {Min: 40, Max: 99},
		ml.FeatureBacklogs:       {Min: 0, Max: 4},
		ml.FeatureHackathons:     {Min: 0, Max: 5},
		ml.FeatureCertifications: {Min: 0, Max: 4},
	}
	order := ml.FeatureNames()
	model := ml.NewLogisticRegression(len(order))
	for i, name := range order {
		model.Weights[i] = 1
		if name == ml.FeatureBacklogs {
			model.Weights[i] = -4
		}
	}
	model.Bias = -3
	artifact, err := ml.NewModelArtifact(model, stats, order)
	require.NoError(t, err)
	return artifact
}

func strongBody() map[string]interface{} {
	return map[string]interface{}{
		"cgpa": 9.0, "iq": 120, "projects": 5, "internships": 2,
		"techScore": 85, "commScore": 80, "backlogs": 0,
		"hackathons": 3, "certifications": 3,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(payload))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, Dependencies{})

	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
	expected := `{"model_loaded":false,"status":"ok"}`
	if strings.TrimSpace(rr.Body.String()) != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestPredictEndToEndWithService(t *testing.T) {
	service, err := inference.NewService(placementArtifact(t))
	require.NoError(t, err)
	handler := NewHandler(DefaultServerConfig(), Dependencies{Predictor: service})

	rr := doJSON(t, handler, http.MethodPost, "/api/predict", strongBody())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["placed"])
	assert.Equal(t, inference.MessagePlaced, resp["message"])
	probability, ok := resp["probability"].(string)
	require.True(t, ok, "probability must be a string")
	assert.Regexp(t, `^\d{1,3}\.\d{2}$`, probability)

	weak := strongBody()
	weak["backlogs"] = 4
	weak["cgpa"] = 5
	rr = doJSON(t, handler, http.MethodPost, "/api/predict", weak)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"placed":false,"probability":"`+mustProbability(t, service, weak)+`","message":"`+inference.MessageNotPlaced+`"}`, rr.Body.String())
}

func mustProbability(t *testing.T, service *inference.Service, body map[string]interface{}) string {
	t.Helper()
	input := make(map[string]float64, len(body))
	for name, value := range body {
		switch v := value.(type) {
		case int:
			input[name] = float64(v)
		case float64:
			input[name] = v
		}
	}
	result, err := service.Predict(context.Background(), input)
	require.NoError(t, err)
	return result.ProbabilityText
}

func TestPredictErrors(t *testing.T) {
	artifact := placementArtifact(t)

	missing := strongBody()
	delete(missing, "iq")
	delete(missing, "hackathons")

	nonNumeric := strongBody()
	nonNumeric["techScore"] = "high"

	nullValue := strongBody()
	nullValue["cgpa"] = nil

	cases := []struct {
		name      string
		predictor Predictor
		body      interface{}
		status    int
		message   string
	}{
		{name: "no model", predictor: &fakePredictor{}, body: strongBody(), status: http.StatusServiceUnavailable, message: "Model not loaded"},
		{name: "missing feature", predictor: &fakePredictor{artifact: artifact}, body: missing, status: http.StatusBadRequest, message: "Missing feature: iq"},
		{name: "non numeric", predictor: &fakePredictor{artifact: artifact}, body: nonNumeric, status: http.StatusBadRequest, message: "Invalid value for feature: techScore"},
		{name: "null value", predictor: &fakePredictor{artifact: artifact}, body: nullValue, status: http.StatusBadRequest, message: "Invalid value for feature: cgpa"},
		{name: "bad json", predictor: &fakePredictor{artifact: artifact}, body: `{"cgpa":`, status: http.StatusBadRequest, message: "Invalid request body"},
		{name: "array body", predictor: &fakePredictor{artifact: artifact}, body: `[1,2]`, status: http.StatusBadRequest, message: "Invalid request body"},
		{name: "engine failure", predictor: &fakePredictor{artifact: artifact, err: errors.New("weights corrupted at /srv/model")}, body: strongBody(), status: http.StatusInternalServerError, message: "Inference engine error"},
		{name: "unloaded during call", predictor: &fakePredictor{artifact: artifact, err: ml.ErrArtifactNotLoaded}, body: strongBody(), status: http.StatusServiceUnavailable, message: "Model not loaded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			metrics := monitoring.NewMetricsCollector()
			RegisterHandlers(mux, Dependencies{Predictor: tc.predictor, Metrics: metrics})

			rr := doJSON(t, mux, http.MethodPost, "/api/predict", tc.body)
			assert.Equal(t, tc.status, rr.Code)
			assert.JSONEq(t, `{"error":"`+tc.message+`"}`, rr.Body.String())
			assert.Equal(t, 1.0, metrics.Value(monitoring.MetricPredictionErrors))
			assert.Zero(t, metrics.Value(monitoring.MetricPredictions))
			if tc.status == http.StatusBadRequest {
				fake := tc.predictor.(*fakePredictor)
				assert.Nil(t, fake.received, "predictor must not be called for a rejected body")
			}
		})
	}
}

func TestPredictNamesOmittedFeature(t *testing.T) {
	artifact := placementArtifact(t)
	for _, omitted := range ml.FeatureNames() {
		t.Run(omitted, func(t *testing.T) {
			predictor := &fakePredictor{artifact: artifact}
			mux := http.NewServeMux()
			RegisterHandlers(mux, Dependencies{Predictor: predictor})

			body := strongBody()
			delete(body, omitted)
			rr := doJSON(t, mux, http.MethodPost, "/api/predict", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.JSONEq(t, `{"error":"Missing feature: `+omitted+`"}`, rr.Body.String())
			assert.Nil(t, predictor.received)
		})
	}
}

func TestPredictClampsToFormRanges(t *testing.T) {
	predictor := &fakePredictor{
		artifact: placementArtifact(t),
		result:   &ml.PredictionResult{Placed: true, Probability: 91.5, ProbabilityText: "91.50", Message: inference.MessagePlaced},
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, Dependencies{Predictor: predictor})

	body := strongBody()
	body["cgpa"] = 14.2
	body["iq"] = 20
	body["backlogs"] = -3
	body["internships"] = 30
	body["extra"] = "ignored"

	rr := doJSON(t, mux, http.MethodPost, "/api/predict", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"placed":true,"probability":"91.50","message":"Profile matches recruitment standards."}`, rr.Body.String())

	assert.Equal(t, 10.0, predictor.received[ml.FeatureCGPA])
	assert.Equal(t, 50.0, predictor.received[ml.FeatureIQ])
	assert.Equal(t, 0.0, predictor.received[ml.FeatureBacklogs])
	assert.Equal(t, 24.0, predictor.received[ml.FeatureInternships])
	assert.Equal(t, 85.0, predictor.received[ml.FeatureTechScore])
	assert.NotContains(t, predictor.received, "extra")
}

func TestPredictRecordsAuditAndMetrics(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	service, err := inference.NewService(placementArtifact(t))
	require.NoError(t, err)
	metrics := monitoring.NewMetricsCollector()
	handler := NewHandler(DefaultServerConfig(), Dependencies{Predictor: service, Store: store, Metrics: metrics})

	for i := 0; i < 3; i++ {
		rr := doJSON(t, handler, http.MethodPost, "/api/predict", strongBody())
		require.Equal(t, http.StatusOK, rr.Code)
	}

	stats, err := store.PredictionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3.0, metrics.Value(monitoring.MetricPredictions))

	rr := doJSON(t, handler, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot))
	assert.Equal(t, 3.0, snapshot["predictions"].(map[string]interface{})["total"])

	rr = doJSON(t, handler, http.MethodGet, "/api/metrics?format=prometheus", nil)
	assert.Contains(t, rr.Body.String(), "predictions_total 3")
}

func TestModelHandler(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, Dependencies{Predictor: &fakePredictor{}})
	rr := doJSON(t, mux, http.MethodGet, "/api/model", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	mux = http.NewServeMux()
	RegisterHandlers(mux, Dependencies{Predictor: &fakePredictor{artifact: placementArtifact(t)}})
	rr = doJSON(t, mux, http.MethodGet, "/api/model", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	loaded, err := ml.UnmarshalArtifact(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, ml.FeatureNames(), loaded.FeatureOrder)
}

func TestTrainHandler(t *testing.T) {
	report := &ml.TrainingReport{RunID: "run-9", Samples: 1500, Train: ml.Metrics{Accuracy: 0.73}, Duration: time.Second}
	cases := []struct {
		name    string
		trainer TrainingRunner
		status  int
	}{
		{name: "not configured", status: http.StatusServiceUnavailable},
		{name: "success", trainer: &fakeTrainer{report: report}, status: http.StatusOK},
		{name: "busy", trainer: &fakeTrainer{err: scheduler.ErrTrainingInProgress}, status: http.StatusConflict},
		{name: "failure", trainer: &fakeTrainer{err: errors.New("disk full")}, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			deps := Dependencies{}
			if tc.trainer != nil {
				deps.Trainer = tc.trainer
			}
			RegisterHandlers(mux, deps)

			rr := doJSON(t, mux, http.MethodPost, "/api/train", nil)
			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, "run-9", resp["run_id"])
				assert.Equal(t, 0.73, resp["accuracy"])
			}
			assert.NotContains(t, rr.Body.String(), "disk full")
		})
	}
}

func TestTrainStatusHandler(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, Dependencies{})
	rr := doJSON(t, mux, http.MethodGet, "/api/train", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	last := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	trainer := &fakeTrainer{status: scheduler.Status{
		Running:        true,
		Schedule:       "0 2 * * *",
		LastExecution:  &last,
		ExecutionCount: 4,
	}}
	mux = http.NewServeMux()
	RegisterHandlers(mux, Dependencies{Trainer: trainer})

	rr = doJSON(t, mux, http.MethodGet, "/api/train", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"running":true,"schedule":"0 2 * * *","last_execution":"2026-03-01T02:00:00Z","execution_count":4}`, rr.Body.String())
}

func TestTrainingRunsHandler(t *testing.T) {
	store, err := db.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.SaveTrainingRun(context.Background(), &ml.TrainingReport{RunID: "r1", TrainedAt: time.Now()}, "model_state.json"))

	mux := http.NewServeMux()
	RegisterHandlers(mux, Dependencies{Store: store})

	rr := doJSON(t, mux, http.MethodGet, "/api/training/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Runs []db.TrainingLog `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "r1", resp.Runs[0].RunID)

	rr = doJSON(t, mux, http.MethodGet, "/api/training/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
