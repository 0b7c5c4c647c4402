// Package risk implements the linear risk scoring model. It is a weighted
// sum over indicator features: demographics contribute a normalized age term
// and gender terms, vitals and labs contribute 0/1 indicators against
// clinical thresholds, and conditions and medications contribute presence
// flags. Weights can be loaded from a JSON model file or fall back to the
// built-in defaults.
package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/medconnect/go-medconnect/internal/ml/features"
)

const (
	ModelID      = "risk-predictor"
	ModelVersion = "1.0.0"
)

// Risk bands.
const (
	LevelLow    = "low-risk"
	LevelMedium = "medium-risk"
	LevelHigh   = "high-risk"
)

// Factor is one contributing feature in a prediction explanation.
type Factor struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
	Direction  string  `json:"direction"`
}

// Result is the outcome of a scoring run.
type Result struct {
	Prediction  string             `json:"prediction"`
	Probability float64            `json:"probability"`
	Scores      map[string]float64 `json:"scores"`
	Factors     []Factor           `json:"factors"`
	Thresholds  map[string]float64 `json:"thresholds"`
}

// Predictor holds the model parameters. Zero thresholds or weights are never
// used; construction always fills in defaults.
type Predictor struct {
	weights    map[string]float64
	thresholds map[string]float64
}

// NewPredictor returns a predictor with the built-in default parameters.
func NewPredictor() *Predictor {
	return &Predictor{weights: defaultWeights(), thresholds: defaultThresholds()}
}

// LoadPredictor reads model parameters from a JSON file. Missing keys fall
// back to the defaults so a partial model file still yields a usable model.
func LoadPredictor(path string) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	var doc struct {
		FeatureWeights map[string]float64 `json:"feature_weights"`
		Thresholds     map[string]float64 `json:"thresholds"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	p := NewPredictor()
	if len(doc.FeatureWeights) > 0 {
		p.weights = doc.FeatureWeights
	}
	if len(doc.Thresholds) > 0 {
		p.thresholds = doc.Thresholds
	}
	return p, nil
}

// Predict scores the feature set. The risk score is the weighted sum of the
// indicator features clamped to [0, 1]; the band is chosen by comparing the
// score to the high and medium thresholds in that order.
func (p *Predictor) Predict(fs features.FeatureSet) Result {
	indicators := p.indicators(fs)

	score := 0.0
	for name, value := range indicators {
		if w, ok := p.weights[name]; ok {
			score += value * w
		}
	}
	score = clamp01(score)

	level := LevelLow
	switch {
	case score >= p.thresholds[LevelHigh]:
		level = LevelHigh
	case score >= p.thresholds[LevelMedium]:
		level = LevelMedium
	}

	low, medium, high := p.thresholds[LevelLow], p.thresholds[LevelMedium], p.thresholds[LevelHigh]
	scores := map[string]float64{
		LevelLow:    max0(1.0 - score/medium),
		LevelMedium: max0(minf(1.0, (score-low)/(high-low))),
		LevelHigh:   max0((score - medium) / (1.0 - medium)),
	}

	return Result{
		Prediction:  level,
		Probability: score,
		Scores:      scores,
		Factors:     p.topFactors(indicators, 5),
		Thresholds:  p.thresholds,
	}
}

// indicators turns the raw feature set into the named numeric features the
// weight table understands. Only the latest value of each measurement series
// participates.
func (p *Predictor) indicators(fs features.FeatureSet) map[string]float64 {
	out := map[string]float64{}

	if fs.Demographics.Age != nil {
		out["age"] = minf(float64(*fs.Demographics.Age)/100.0, 1.0)
	}
	switch fs.Demographics.Gender {
	case "male":
		out["gender_male"] = 1.0
		out["gender_female"] = 0.0
	case "female":
		out["gender_male"] = 0.0
		out["gender_female"] = 1.0
	}

	vital := func(obsType string) (float64, bool) {
		return features.LatestValue(fs.VitalSigns[obsType])
	}
	lab := func(obsType string) (float64, bool) {
		return features.LatestValue(fs.LabResults[obsType])
	}

	if v, ok := vital("heart-rate"); ok {
		out["heart_rate_high"] = indicator(v > 100)
		out["heart_rate_low"] = indicator(v < 60)
	}
	if v, ok := vital("respiratory-rate"); ok {
		out["respiratory_rate_high"] = indicator(v > 20)
		out["respiratory_rate_low"] = indicator(v < 12)
	}
	if v, ok := vital("temperature"); ok {
		out["temperature_high"] = indicator(v > 38.0)
		out["temperature_low"] = indicator(v < 36.0)
	}
	if v, ok := vital("oxygen-saturation"); ok {
		out["oxygen_saturation_low"] = indicator(v < 95)
	}

	if v, ok := lab("lab-glucose"); ok {
		out["glucose_high"] = indicator(v > 200)
		out["glucose_low"] = indicator(v < 70)
	}
	if v, ok := lab("lab-wbc"); ok {
		out["wbc_high"] = indicator(v > 11)
		out["wbc_low"] = indicator(v < 4)
	}
	if v, ok := lab("lab-creatinine"); ok {
		out["creatinine_high"] = indicator(v > 1.2)
	}
	if v, ok := lab("lab-bun"); ok {
		out["bun_high"] = indicator(v > 20)
	}
	if v, ok := lab("lab-potassium"); ok {
		out["potassium_high"] = indicator(v > 5.0)
		out["potassium_low"] = indicator(v < 3.5)
	}
	if v, ok := lab("lab-sodium"); ok {
		out["sodium_high"] = indicator(v > 145)
		out["sodium_low"] = indicator(v < 135)
	}

	for _, condition := range fs.Conditions {
		if _, ok := p.weights[condition]; ok {
			out[condition] = 1.0
		}
	}
	for _, medication := range fs.Medications {
		if _, ok := p.weights[medication]; ok {
			out[medication] = 1.0
		}
	}

	return out
}

// topFactors returns the n highest-weighted features that fired, ordered by
// weight descending with name as the deterministic tiebreak.
func (p *Predictor) topFactors(indicators map[string]float64, n int) []Factor {
	type weighted struct {
		name   string
		weight float64
	}
	ranked := make([]weighted, 0, len(p.weights))
	for name, w := range p.weights {
		ranked = append(ranked, weighted{name, w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].name < ranked[j].name
	})

	var factors []Factor
	for _, r := range ranked {
		if v, ok := indicators[r.name]; ok && v > 0 {
			factors = append(factors, Factor{Name: r.name, Importance: r.weight, Direction: "positive"})
			if len(factors) >= n {
				break
			}
		}
	}
	return factors
}

func indicator(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func clamp01(v float64) float64 { return minf(max0(v), 1.0) }

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func defaultThresholds() map[string]float64 {
	return map[string]float64{
		LevelLow:    0.3,
		LevelMedium: 0.6,
		LevelHigh:   0.8,
	}
}

func defaultWeights() map[string]float64 {
	return map[string]float64{
		"age":           0.05,
		"gender_male":   0.02,
		"gender_female": -0.01,

		"heart_rate_high":               0.15,
		"heart_rate_low":                0.1,
		"blood_pressure_systolic_high":  0.2,
		"blood_pressure_systolic_low":   0.05,
		"blood_pressure_diastolic_high": 0.15,
		"blood_pressure_diastolic_low":  0.05,
		"respiratory_rate_high":         0.15,
		"respiratory_rate_low":          0.1,
		"temperature_high":              0.15,
		"temperature_low":               0.05,
		"oxygen_saturation_low":         0.25,

		"glucose_high":    0.1,
		"glucose_low":     0.05,
		"wbc_high":        0.1,
		"wbc_low":         0.05,
		"creatinine_high": 0.15,
		"bun_high":        0.1,
		"potassium_high":  0.1,
		"potassium_low":   0.1,
		"sodium_high":     0.05,
		"sodium_low":      0.05,

		"diabetes":     0.15,
		"hypertension": 0.1,
		"copd":         0.2,
		"chf":          0.25,
		"ckd":          0.2,
		"cad":          0.15,
		"stroke":       0.2,
		"cancer":       0.15,

		"insulin":          0.05,
		"antihypertensive": 0.05,
		"anticoagulant":    0.1,
		"steroid":          0.05,
		"opioid":           0.1,
	}
}
