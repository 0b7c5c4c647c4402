package risk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medconnect/go-medconnect/internal/ml/features"
	"github.com/medconnect/go-medconnect/internal/ml/risk"
)

func intPtr(i int) *int { return &i }

func series(v float64) []features.DataPoint {
	return []features.DataPoint{{Value: v, Timestamp: "2024-03-01T10:00:00Z"}}
}

func emptyFeatureSet() features.FeatureSet {
	return features.FeatureSet{
		VitalSigns: map[string][]features.DataPoint{},
		LabResults: map[string][]features.DataPoint{},
	}
}

func TestPredictEmptyFeatureSetIsLowRisk(t *testing.T) {
	result := risk.NewPredictor().Predict(emptyFeatureSet())

	assert.Equal(t, risk.LevelLow, result.Prediction)
	assert.Zero(t, result.Probability)
	assert.Equal(t, 1.0, result.Scores[risk.LevelLow])
	assert.Zero(t, result.Scores[risk.LevelMedium])
	assert.Zero(t, result.Scores[risk.LevelHigh])
	assert.Empty(t, result.Factors)
	assert.Equal(t, 0.8, result.Thresholds[risk.LevelHigh])
}

func TestPredictSingleIndicatorWeights(t *testing.T) {
	cases := []struct {
		name     string
		fs       func() features.FeatureSet
		expected float64
	}{
		{"tachycardia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.VitalSigns["heart-rate"] = series(120)
			return fs
		}, 0.15},
		{"bradycardia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.VitalSigns["heart-rate"] = series(55)
			return fs
		}, 0.1},
		{"hypoxia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.VitalSigns["oxygen-saturation"] = series(90)
			return fs
		}, 0.25},
		{"fever", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.VitalSigns["temperature"] = series(38.5)
			return fs
		}, 0.15},
		{"hyperglycemia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.LabResults["lab-glucose"] = series(250)
			return fs
		}, 0.1},
		{"elevated creatinine", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.LabResults["lab-creatinine"] = series(1.5)
			return fs
		}, 0.15},
		{"hyperkalemia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.LabResults["lab-potassium"] = series(5.5)
			return fs
		}, 0.1},
		{"hyponatremia", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.LabResults["lab-sodium"] = series(130)
			return fs
		}, 0.05},
		{"chf", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.Conditions = []string{"chf"}
			return fs
		}, 0.25},
		{"anticoagulant", func() features.FeatureSet {
			fs := emptyFeatureSet()
			fs.Medications = []string{"anticoagulant"}
			return fs
		}, 0.1},
	}

	p := risk.NewPredictor()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := p.Predict(tc.fs())
			assert.InDelta(t, tc.expected, result.Probability, 1e-9)
		})
	}
}

func TestPredictNormalVitalsContributeNothing(t *testing.T) {
	fs := emptyFeatureSet()
	fs.VitalSigns["heart-rate"] = series(75)
	fs.VitalSigns["temperature"] = series(37.0)
	fs.VitalSigns["oxygen-saturation"] = series(98)
	fs.LabResults["lab-glucose"] = series(100)

	result := risk.NewPredictor().Predict(fs)
	assert.Zero(t, result.Probability)
	assert.Equal(t, risk.LevelLow, result.Prediction)
}

func TestPredictUsesOnlyLatestMeasurement(t *testing.T) {
	fs := emptyFeatureSet()
	fs.VitalSigns["heart-rate"] = []features.DataPoint{
		{Value: 130, Timestamp: "2024-03-01T08:00:00Z"},
		{Value: 75, Timestamp: "2024-03-01T10:00:00Z"},
	}

	result := risk.NewPredictor().Predict(fs)
	assert.Zero(t, result.Probability)
}

func TestPredictAgeAndGenderTerms(t *testing.T) {
	p := risk.NewPredictor()

	fs := emptyFeatureSet()
	fs.Demographics = features.Demographics{Gender: "male", Age: intPtr(60)}
	result := p.Predict(fs)
	// age 60/100 * 0.05 + gender_male * 0.02
	assert.InDelta(t, 0.05, result.Probability, 1e-9)

	// The female weight is negative; alone it clamps to zero.
	fs.Demographics = features.Demographics{Gender: "female"}
	result = p.Predict(fs)
	assert.Zero(t, result.Probability)

	// Age normalization caps at 1.
	fs.Demographics = features.Demographics{Age: intPtr(120)}
	result = p.Predict(fs)
	assert.InDelta(t, 0.05, result.Probability, 1e-9)
}

func TestPredictBanding(t *testing.T) {
	p := risk.NewPredictor()

	// chf 0.25 + copd 0.2 + diabetes 0.15 = 0.6, the medium threshold.
	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf", "copd", "diabetes"}
	result := p.Predict(fs)
	assert.InDelta(t, 0.6, result.Probability, 1e-9)
	assert.Equal(t, risk.LevelMedium, result.Prediction)

	// Adding hypoxia pushes past the high threshold.
	fs.VitalSigns["oxygen-saturation"] = series(88)
	result = p.Predict(fs)
	assert.InDelta(t, 0.85, result.Probability, 1e-9)
	assert.Equal(t, risk.LevelHigh, result.Prediction)
}

func TestPredictClampsToOne(t *testing.T) {
	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf", "copd", "ckd", "stroke", "cancer", "diabetes", "cad", "hypertension"}

	result := risk.NewPredictor().Predict(fs)
	assert.Equal(t, 1.0, result.Probability)
	assert.Equal(t, risk.LevelHigh, result.Prediction)
	assert.Equal(t, 1.0, result.Scores[risk.LevelHigh])
}

func TestPredictTopFactorsOrdering(t *testing.T) {
	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf", "copd"}
	fs.VitalSigns["heart-rate"] = series(120)
	fs.VitalSigns["oxygen-saturation"] = series(90)

	result := risk.NewPredictor().Predict(fs)

	names := make([]string, 0, len(result.Factors))
	for _, f := range result.Factors {
		names = append(names, f.Name)
		assert.Equal(t, "positive", f.Direction)
	}
	// Weight descending with name as the tiebreak: chf and
	// oxygen_saturation_low share 0.25.
	assert.Equal(t, []string{"chf", "oxygen_saturation_low", "copd", "heart_rate_high"}, names)
}

func TestPredictTopFactorsCapAtFive(t *testing.T) {
	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf", "copd", "ckd", "stroke", "cancer", "diabetes", "cad"}

	result := risk.NewPredictor().Predict(fs)
	assert.Len(t, result.Factors, 5)
}

func TestLoadPredictor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	doc := `{
		"feature_weights": {"chf": 1.0},
		"thresholds": {"low-risk": 0.2, "medium-risk": 0.5, "high-risk": 0.9}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := risk.LoadPredictor(path)
	require.NoError(t, err)

	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf"}
	result := p.Predict(fs)
	assert.Equal(t, 1.0, result.Probability)
	assert.Equal(t, risk.LevelHigh, result.Prediction)
	assert.Equal(t, 0.9, result.Thresholds[risk.LevelHigh])
}

func TestLoadPredictorPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"thresholds": {"low-risk": 0.1, "medium-risk": 0.4, "high-risk": 0.7}}`), 0o644))

	p, err := risk.LoadPredictor(path)
	require.NoError(t, err)

	fs := emptyFeatureSet()
	fs.Conditions = []string{"chf"}
	result := p.Predict(fs)
	assert.InDelta(t, 0.25, result.Probability, 1e-9)
	assert.Equal(t, risk.LevelLow, result.Prediction)
}

func TestLoadPredictorErrors(t *testing.T) {
	_, err := risk.LoadPredictor("/nonexistent/model.json")
	require.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = risk.LoadPredictor(path)
	require.Error(t, err)
}
