package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

func point(id int64, country, code string, year int, value float64) models.ValuePoint {
	return models.ValuePoint{ID: id, CountryCode: country, IndicatorCode: code, Year: year, Value: value}
}

func TestCheckPoint(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		p     models.ValuePoint
		bad   bool
		issue string
	}{
		{"valid generic", point(1, "USA", "EG.ELC.ACCS.ZS", 2020, 100), false, ""},
		{"year too early", point(2, "USA", "EG.ELC.ACCS.ZS", 1975, 100), true, IssueInvalidYear},
		{"year too late", point(3, "USA", "EG.ELC.ACCS.ZS", 2031, 100), true, IssueInvalidYear},
		{"nan", point(4, "USA", "EG.ELC.ACCS.ZS", 2020, math.NaN()), true, IssueNotFinite},
		{"inf", point(5, "USA", "EG.ELC.ACCS.ZS", 2020, math.Inf(1)), true, IssueNotFinite},
		{"gdp growth in range", point(6, "FRA", "NY.GDP.MKTP.KD.ZG", 2020, -8), false, ""},
		{"gdp growth out of range", point(7, "FRA", "NY.GDP.MKTP.KD.ZG", 2020, 60), true, IssueOutOfRange},
		{"imf inflation out of range", point(8, "ZWE", "PCPIPCH", 2008, 250), true, IssueOutOfRange},
		{"generic above default bound", point(9, "CHN", "NY.GDP.MKTP.CD", 2020, 2e12), true, IssueOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, bad := checkPoint(&cfg, models.SourceWorldBank, tt.p)
			assert.Equal(t, tt.bad, bad)
			if !tt.bad {
				return
			}
			assert.Equal(t, AnomalyRangeViolation, a.Type)
			assert.Equal(t, tt.issue, a.Issue)
			assert.Equal(t, models.SourceWorldBank, a.Source)
		})
	}
}

func TestCheckPoint_NonFiniteKeepsRawValue(t *testing.T) {
	cfg := DefaultConfig()

	a, bad := checkPoint(&cfg, models.SourceOECD, point(1, "DEU", "GERD", 2020, math.Inf(-1)))
	require.True(t, bad)
	assert.Equal(t, 0.0, a.Value)
	assert.Equal(t, "-Inf", a.RawValue)
}

func TestCheckPoint_RangeReported(t *testing.T) {
	cfg := DefaultConfig()

	a, bad := checkPoint(&cfg, models.SourceIMF, point(1, "VEN", "NGDP_RPCH", 2019, -55))
	require.True(t, bad)
	require.NotNil(t, a.Range)
	assert.Equal(t, sanitize.GDPGrowthBounds, *a.Range)
}

func TestMeanStddev(t *testing.T) {
	mean, sd, ok := meanStddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.True(t, ok)
	assert.InDelta(t, 5.0, mean, 1e-9)
	// sample standard deviation: sqrt(32/7)
	assert.InDelta(t, math.Sqrt(32.0/7.0), sd, 1e-9)

	_, _, ok = meanStddev([]float64{1})
	assert.False(t, ok)
}

func TestOutliers(t *testing.T) {
	f := DefaultFamilies()[0]

	var points []models.ValuePoint
	for i := 0; i < 50; i++ {
		v := 2.0
		if i%2 == 0 {
			v = 3.0
		}
		points = append(points, point(int64(i+1), "C"+string(rune('A'+i%26)), f.WBCode, 2000+i%20, v))
	}
	// Outside the stats sub-range: scored but not part of the sample.
	points = append(points, point(100, "ZZZ", f.WBCode, 2020, 45))

	found := outliers(f, models.SourceWorldBank, points, 3.0)
	require.Len(t, found, 1)
	assert.Equal(t, "ZZZ", found[0].CountryCode)
	assert.Equal(t, "GDP_GROWTH_OUTLIER", found[0].Type)
	assert.Equal(t, IssueStatOutlier, found[0].Issue)
	assert.Greater(t, found[0].ZScore, 3.0)
}

func TestOutliers_ZeroDeviation(t *testing.T) {
	f := DefaultFamilies()[1]
	points := []models.ValuePoint{
		point(1, "USA", f.IMFCode, 2020, 2),
		point(2, "FRA", f.IMFCode, 2020, 2),
		point(3, "DEU", f.IMFCode, 2020, 80),
	}

	assert.Empty(t, outliers(f, models.SourceIMF, points, 3.0))
}

func TestTopByZScore(t *testing.T) {
	anomalies := []Anomaly{
		{CountryCode: "BBB", Year: 2001, ZScore: 4},
		{CountryCode: "AAA", Year: 2002, ZScore: 9},
		{CountryCode: "CCC", Year: 2003, ZScore: 4},
		{CountryCode: "AAA", Year: 2000, ZScore: 4},
		{CountryCode: "DDD", Year: 2004, ZScore: 7},
	}

	top := topByZScore(anomalies, 4)
	require.Len(t, top, 4)
	assert.Equal(t, 9.0, top[0].ZScore)
	assert.Equal(t, 7.0, top[1].ZScore)
	assert.Equal(t, "AAA", top[2].CountryCode)
	assert.Equal(t, 2000, top[2].Year)
	assert.Equal(t, "BBB", top[3].CountryCode)
}

func TestInconsistencies(t *testing.T) {
	f := DefaultFamilies()[0] // abs 2.0, rel 15%

	pairs := []models.SourcePair{
		{CountryCode: "USA", Year: 2020, WBValue: -3.4, IMFValue: -3.5}, // within abs
		{CountryCode: "ARG", Year: 2018, WBValue: 20, IMFValue: 22.5},   // 12.5%: within rel
		{CountryCode: "TUR", Year: 2019, WBValue: 4, IMFValue: 0.9},     // flagged
		{CountryCode: "LBN", Year: 2021, WBValue: 0, IMFValue: 3},       // zero base
	}

	found := inconsistencies(f, pairs, 0)
	require.Len(t, found, 2)

	assert.Equal(t, "TUR", found[0].CountryCode)
	assert.Equal(t, "GDP_GROWTH_VARIANCE", found[0].Type)
	assert.InDelta(t, 3.1, found[0].Variance, 1e-9)
	require.NotNil(t, found[0].VariancePercent)
	assert.InDelta(t, 77.5, *found[0].VariancePercent, 1e-9)

	assert.Equal(t, "LBN", found[1].CountryCode)
	assert.Nil(t, found[1].VariancePercent)
}

func TestInconsistencies_Limit(t *testing.T) {
	f := DefaultFamilies()[1]

	var pairs []models.SourcePair
	for i := 0; i < 10; i++ {
		pairs = append(pairs, models.SourcePair{CountryCode: "ARG", Year: 2000 + i, WBValue: 10, IMFValue: 50})
	}
	pairs = append(pairs, models.SourcePair{CountryCode: "XXX", Year: 2020, WBValue: math.NaN(), IMFValue: 1})

	assert.Len(t, inconsistencies(f, pairs, 3), 3)
	assert.Len(t, inconsistencies(f, pairs, 0), 10)
}

func TestBucketCountries(t *testing.T) {
	b := bucketCountries([]models.CountryCoverage{
		{UnifiedCode: "USA", Sources: 3},
		{UnifiedCode: "FRA", Sources: 3},
		{UnifiedCode: "ARG", Sources: 2},
		{UnifiedCode: "TUV", Sources: 1},
		{UnifiedCode: "XKX", Sources: 0},
	})

	assert.Equal(t, CountryBuckets{Total: 5, Tri: 2, Dual: 1, Single: 1, None: 1}, b)
}

func TestMissingIndustries(t *testing.T) {
	missing := missingIndustries(
		[]string{"food", "ict", "energy", "climate"},
		[]models.IndustryCoverage{
			{Industry: "energy", TotalConcepts: 4},
			{Industry: "food", TotalConcepts: 2},
			{Industry: "climate", TotalConcepts: 0},
		},
	)

	assert.Equal(t, []string{"ict", "climate"}, missing)
	assert.Equal(t, []string{}, missingIndustries([]string{"food"}, []models.IndustryCoverage{{Industry: "food", TotalConcepts: 1}}))
}

func TestCompareCount(t *testing.T) {
	within := compareCount(models.SourceWorldBank, 103, 100, 0.05)
	assert.True(t, within.Within)
	assert.InDelta(t, 0.03, within.Variance, 1e-9)

	over := compareCount(models.SourceOECD, 90, 100, 0.05)
	assert.False(t, over.Within)
	assert.Contains(t, over.warning().Message, "OECD record count variance: 90 vs expected 100 (10.0%)")

	none := compareCount(models.SourceIMF, 5, 0, 0.05)
	assert.True(t, none.Within)
	assert.Zero(t, none.Variance)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(testValidationConfig())

	assert.Equal(t, map[models.Source]int64{models.SourceWorldBank: 515565}, cfg.Baselines)
	assert.Equal(t, sanitize.YearRange{Min: 1980, Max: 2030}, cfg.Years)
	assert.Equal(t, 0.30, cfg.Weights.Completeness)
	assert.Len(t, cfg.RequiredIndustries, 12)
	assert.Len(t, cfg.Families, 2)

	// Family lookup follows the shared indicator families.
	assert.Equal(t, sanitize.InflationBounds, cfg.boundsFor("PCPIPCH"))
	assert.Equal(t, sanitize.DefaultValueBounds, cfg.boundsFor("SP.POP.TOTL"))
}
