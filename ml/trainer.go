package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TrainConfig struct {
	LearningRate     float64
	Epochs           int
	TestRatio        float64
	Seed             int64
	ProgressInterval int
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		LearningRate:     DefaultLearningRate,
		Epochs:           ProductionEpochs,
		Seed:             -1,
		ProgressInterval: defaultProgressInterval,
	}
}

type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"log_loss"`
	Samples   int     `json:"samples"`
}

type TrainingReport struct {
	RunID     string        `json:"run_id"`
	Samples   int           `json:"samples"`
	Train     Metrics       `json:"train"`
	Test      *Metrics      `json:"test,omitempty"`
	FinalLoss float64       `json:"final_loss"`
	Duration  time.Duration `json:"duration"`
	TrainedAt time.Time     `json:"trained_at"`
}

// Trainer runs the full pipeline: stats over the whole dataset, normalize,
// optional holdout split, gradient descent, evaluation, artifact.
type Trainer struct {
	config TrainConfig
	logger *zap.Logger
}

func NewTrainer(config TrainConfig, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{config: config, logger: logger}
}

func (t *Trainer) Run(dataset Dataset) (*ModelArtifact, *TrainingReport, error) {
	if len(dataset) == 0 {
		return nil, nil, ErrEmptyDataset
	}
	if t.config.TestRatio < 0 || t.config.TestRatio >= 1 {
		return nil, nil, fmt.Errorf("test ratio must be in [0,1), got %v", t.config.TestRatio)
	}

	start := time.Now()
	runID := uuid.New().String()
	order := FeatureNames()

	preprocessor := NewDataPreprocessor(order)
	if err := preprocessor.ComputeStats(dataset); err != nil {
		return nil, nil, err
	}
	features, labels, err := preprocessor.Normalize(dataset)
	if err != nil {
		return nil, nil, err
	}

	trainX, trainY, testX, testY := features, labels, [][]float64(nil), []int(nil)
	if t.config.TestRatio > 0 {
		trainX, trainY, testX, testY = splitDataset(features, labels, t.config.TestRatio, t.config.Seed)
		if len(trainX) == 0 {
			return nil, nil, errors.New("training split is empty")
		}
	}

	model := NewLogisticRegression(len(order))
	model.LearningRate = t.config.LearningRate
	model.Epochs = t.config.Epochs
	model.ProgressInterval = t.config.ProgressInterval
	model.OnEpoch = func(epoch int, loss float64) {
		t.logger.Info("training progress",
			zap.String("run_id", runID),
			zap.Int("epoch", epoch),
			zap.Float64("loss", loss))
	}

	t.logger.Info("training started",
		zap.String("run_id", runID),
		zap.Int("samples", len(trainX)),
		zap.Int("epochs", model.Epochs),
		zap.Float64("learning_rate", model.LearningRate),
		zap.Float64("positive_rate", dataset.PositiveRate()))

	if err := model.Train(trainX, trainY); err != nil {
		return nil, nil, err
	}

	report := &TrainingReport{
		RunID:     runID,
		Samples:   len(dataset),
		TrainedAt: time.Now().UTC(),
	}
	if report.Train, err = Evaluate(model, trainX, trainY); err != nil {
		return nil, nil, err
	}
	report.FinalLoss = report.Train.LogLoss
	if len(testX) > 0 {
		test, err := Evaluate(model, testX, testY)
		if err != nil {
			return nil, nil, err
		}
		report.Test = &test
	}
	report.Duration = time.Since(start)

	artifact, err := NewModelArtifact(model, preprocessor.FeatureStats(), order)
	if err != nil {
		return nil, nil, err
	}
	artifact.Metadata = &ArtifactMetadata{
		RunID:            runID,
		TrainedAt:        report.TrainedAt,
		LearningRate:     model.LearningRate,
		Epochs:           model.Epochs,
		Samples:          len(trainX),
		TrainingAccuracy: report.Train.Accuracy,
	}

	t.logger.Info("training complete",
		zap.String("run_id", runID),
		zap.Float64("accuracy", report.Train.Accuracy),
		zap.Float64("loss", report.FinalLoss),
		zap.Duration("duration", report.Duration))
	return artifact, report, nil
}

// Evaluate scores the model on a normalized set; class 1 is the positive
// class for precision and recall.
func Evaluate(model MLModel, features [][]float64, labels []int) (Metrics, error) {
	if len(features) == 0 {
		return Metrics{}, ErrEmptyDataset
	}
	if len(features) != len(labels) {
		return Metrics{}, ErrDimensionMismatch
	}

	var correct, truePositive, predictedPositive, actualPositive int
	loss := 0.0
	for i, x := range features {
		label, prob, err := model.Predict(x)
		if err != nil {
			return Metrics{}, err
		}
		loss += crossEntropy(prob, labels[i])
		if label == labels[i] {
			correct++
		}
		if label == 1 {
			predictedPositive++
		}
		if labels[i] == 1 {
			actualPositive++
			if label == 1 {
				truePositive++
			}
		}
	}

	metrics := Metrics{
		Accuracy: float64(correct) / float64(len(features)),
		Samples:  len(features),
	}
	if predictedPositive > 0 {
		metrics.Precision = float64(truePositive) / float64(predictedPositive)
	}
	if actualPositive > 0 {
		metrics.Recall = float64(truePositive) / float64(actualPositive)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	metrics.LogLoss = loss / float64(len(features))
	return metrics, nil
}

// EvaluateDataset normalizes raw records with the artifact and scores them.
func EvaluateDataset(artifact *ModelArtifact, dataset Dataset) (Metrics, error) {
	if len(dataset) == 0 {
		return Metrics{}, ErrEmptyDataset
	}
	features := make([][]float64, len(dataset))
	for i, record := range dataset {
		vector, err := artifact.Vectorize(record.Features)
		if err != nil {
			return Metrics{}, fmt.Errorf("record %d: %w", i, err)
		}
		features[i] = vector
	}
	return Evaluate(artifact.Engine(), features, dataset.Labels())
}

func splitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}
