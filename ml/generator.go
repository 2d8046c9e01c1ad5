package ml

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// DefaultSampleCount matches the size of the reference training set.
const DefaultSampleCount = 1500

type featureDraw struct {
	name     string
	min, max float64
	integer  bool
}

// Every draw is uniform in [min, max); integer features are floored and
// cgpa is kept to two decimals.
var featureDraws = []featureDraw{
	{name: FeatureCGPA, min: 5, max: 10},
	{name: FeatureIQ, min: 80, max: 140, integer: true},
	{name: FeatureProjects, min: 0, max: 8, integer: true},
	{name: FeatureInternships, min: 0, max: 4, integer: true},
	{name: FeatureTechScore, min: 40, max: 100, integer: true},
	{name: FeatureCommScore, min: 40, max: 100, integer: true},
	{name: FeatureBacklogs, min: 0, max: 5, integer: true},
	{name: FeatureHackathons, min: 0, max: 6, integer: true},
	{name: FeatureCertifications, min: 0, max: 5, integer: true},
}

type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed. A negative seed uses a
// time-based source, so successive runs differ.
func NewGenerator(seed int64) *Generator {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Generate(count int) (Dataset, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}
	dataset := make(Dataset, 0, count)
	for i := 0; i < count; i++ {
		features := make(map[string]float64, len(featureDraws))
		for _, draw := range featureDraws {
			value := g.rng.Float64()*(draw.max-draw.min) + draw.min
			if draw.integer {
				value = math.Floor(value)
			} else {
				value = round2(value)
			}
			features[draw.name] = value
		}

		// Bernoulli draw against the heuristic probability keeps the
		// classes overlapping.
		label := 0
		if g.rng.Float64() < Sigmoid(PlacementScore(features)) {
			label = 1
		}
		dataset = append(dataset, Record{Features: features, Label: label})
	}
	return dataset, nil
}

// PlacementScore is the hand-tuned linear heuristic the synthetic labels
// are drawn from.
func PlacementScore(f map[string]float64) float64 {
	score := 0.0
	score += (f[FeatureCGPA] - 7.5) * 2.0
	score += (f[FeatureIQ] - 100) * 0.05
	score += f[FeatureProjects] * 0.5
	score += f[FeatureInternships] * 0.8
	score += (f[FeatureTechScore] - 60) * 0.05
	score += (f[FeatureCommScore] - 60) * 0.03
	score -= f[FeatureBacklogs] * 1.5
	score += f[FeatureHackathons] * 0.4
	score += f[FeatureCertifications] * 0.3
	return score
}
