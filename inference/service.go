package inference

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"placementai/ml"
)

const (
	MessagePlaced    = "Profile matches recruitment standards."
	MessageNotPlaced = "Profile needs further skill enhancement."

	DefaultCacheSize = 1024
)

// loadedModel pairs an artifact with the engine built from it. The
// generation tags cache entries so results computed against a replaced
// model are never served.
type loadedModel struct {
	artifact   *ml.ModelArtifact
	engine     ml.MLModel
	generation uint64
}

// Service answers placement predictions from the currently loaded
// artifact. It is safe for concurrent use; Swap replaces the model
// without blocking readers.
type Service struct {
	current    atomic.Pointer[loadedModel]
	generation atomic.Uint64
	cache      *lru.Cache[string, ml.PredictionResult]
	cacheSize  int
	logger     *zap.Logger
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCacheSize bounds the prediction cache. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		s.cacheSize = size
	}
}

// NewService builds a service around artifact. A nil artifact is allowed:
// Predict then fails with ml.ErrArtifactNotLoaded until Swap is called.
func NewService(artifact *ml.ModelArtifact, opts ...Option) (*Service, error) {
	s := &Service{
		cacheSize: DefaultCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, ml.PredictionResult](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create prediction cache: %w", err)
		}
		s.cache = cache
	}
	if artifact != nil {
		if err := s.Swap(artifact); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Swap validates artifact and makes it the serving model.
func (s *Service) Swap(artifact *ml.ModelArtifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: nil artifact", ml.ErrInvalidArtifact)
	}
	if err := artifact.Validate(); err != nil {
		return err
	}
	next := &loadedModel{
		artifact:   artifact,
		engine:     artifact.Engine(),
		generation: s.generation.Add(1),
	}
	s.current.Store(next)
	if s.cache != nil {
		s.cache.Purge()
	}
	s.logger.Info("model swapped",
		zap.Uint64("generation", next.generation),
		zap.Int("features", len(artifact.FeatureOrder)))
	return nil
}

// Artifact returns the serving artifact or nil.
func (s *Service) Artifact() *ml.ModelArtifact {
	if m := s.current.Load(); m != nil {
		return m.artifact
	}
	return nil
}

func (s *Service) Loaded() bool {
	return s.current.Load() != nil
}

// Predict scores a raw feature map. Every name in the artifact's feature
// order must be present; the first absent one is reported as a
// *ml.MissingFeatureError and the engine is not invoked. Extra keys are
// ignored and values are used as given.
func (s *Service) Predict(ctx context.Context, input map[string]float64) (*ml.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := s.current.Load()
	if m == nil {
		return nil, ml.ErrArtifactNotLoaded
	}

	for _, name := range m.artifact.FeatureOrder {
		if _, ok := input[name]; !ok {
			return nil, &ml.MissingFeatureError{Name: name}
		}
	}

	key := cacheKey(m, input)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return &cached, nil
		}
	}

	vector, err := m.artifact.Vectorize(input)
	if err != nil {
		return nil, err
	}
	class, prob, err := m.engine.Predict(vector)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	if math.IsNaN(prob) {
		return nil, fmt.Errorf("inference: probability is NaN")
	}

	result := shape(class, prob)
	if s.cache != nil {
		s.cache.Add(key, result)
	}
	return &result, nil
}

func shape(class int, prob float64) ml.PredictionResult {
	percent := prob * 100
	result := ml.PredictionResult{
		Placed:          class == 1,
		Probability:     math.Round(percent*100) / 100,
		ProbabilityText: strconv.FormatFloat(percent, 'f', 2, 64),
		Message:         MessageNotPlaced,
	}
	if result.Placed {
		result.Message = MessagePlaced
	}
	return result
}

func cacheKey(m *loadedModel, input map[string]float64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(m.generation, 10))
	for _, name := range m.artifact.FeatureOrder {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(input[name], 'g', -1, 64))
	}
	return b.String()
}

var _ ml.ModelProvider = (*Service)(nil)
