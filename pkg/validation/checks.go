package validation

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// checkPoint re-applies the year and value bounds to one stored row.
// Returns false when the row is valid.
func checkPoint(cfg *Config, src models.Source, p models.ValuePoint) (Anomaly, bool) {
	a := Anomaly{
		Type:          AnomalyRangeViolation,
		Source:        src,
		CountryCode:   p.CountryCode,
		IndicatorCode: p.IndicatorCode,
		Year:          p.Year,
		Value:         p.Value,
	}

	switch {
	case !cfg.Years.Contains(p.Year):
		a.Issue = IssueInvalidYear
	case math.IsNaN(p.Value) || math.IsInf(p.Value, 0):
		a.Issue = IssueNotFinite
		a.Value = 0
		a.RawValue = strconv.FormatFloat(p.Value, 'g', -1, 64)
	default:
		b := cfg.boundsFor(p.IndicatorCode)
		if b.Contains(p.Value) {
			return Anomaly{}, false
		}
		a.Issue = IssueOutOfRange
		a.Range = &b
	}
	return a, true
}

// meanStddev returns the mean and sample standard deviation of values.
// ok is false with fewer than two values.
func meanStddev(values []float64) (mean, sd float64, ok bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	sd = math.Sqrt(sq / float64(len(values)-1))
	return mean, sd, true
}

// outliers flags points whose |z| exceeds threshold. The mean and standard
// deviation come from the points inside f.StatsRange; every point is scored.
func outliers(f Family, src models.Source, points []models.ValuePoint, threshold float64) []Anomaly {
	var sample []float64
	for _, p := range points {
		if f.StatsRange.Contains(p.Value) {
			sample = append(sample, p.Value)
		}
	}

	mean, sd, ok := meanStddev(sample)
	if !ok || sd == 0 {
		return nil
	}

	var out []Anomaly
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		z := math.Abs(p.Value-mean) / sd
		if z <= threshold {
			continue
		}
		out = append(out, Anomaly{
			Type:          string(f.Name) + outlierSuffix,
			Source:        src,
			CountryCode:   p.CountryCode,
			IndicatorCode: p.IndicatorCode,
			Year:          p.Year,
			Value:         p.Value,
			ZScore:        z,
			Issue:         IssueStatOutlier,
		})
	}
	return out
}

// topByZScore sorts anomalies by z-score descending and keeps at most limit.
// Ties keep a stable country/year order so repeated runs agree.
func topByZScore(anomalies []Anomaly, limit int) []Anomaly {
	slices.SortStableFunc(anomalies, func(a, b Anomaly) int {
		switch {
		case a.ZScore > b.ZScore:
			return -1
		case a.ZScore < b.ZScore:
			return 1
		case a.CountryCode != b.CountryCode:
			if a.CountryCode < b.CountryCode {
				return -1
			}
			return 1
		}
		return a.Year - b.Year
	})
	if limit > 0 && len(anomalies) > limit {
		anomalies = anomalies[:limit]
	}
	return anomalies
}

// inconsistencies keeps the pairs that exceed both tolerances of f, at most limit.
// A zero World Bank value has no relative variance and is flagged on the
// absolute difference alone.
func inconsistencies(f Family, pairs []models.SourcePair, limit int) []Inconsistency {
	var out []Inconsistency
	for _, p := range pairs {
		diff := math.Abs(p.WBValue - p.IMFValue)
		if math.IsNaN(diff) || math.IsInf(diff, 0) || diff <= f.AbsTolerance {
			continue
		}

		inc := Inconsistency{
			Type:        string(f.Name) + varianceSuffix,
			CountryCode: p.CountryCode,
			Year:        p.Year,
			WBValue:     p.WBValue,
			IMFValue:    p.IMFValue,
			Variance:    diff,
		}
		if p.WBValue != 0 {
			pct := diff / math.Abs(p.WBValue) * 100
			if pct <= f.RelTolerance*100 {
				continue
			}
			inc.VariancePercent = &pct
		}

		out = append(out, inc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// bucketCountries counts countries by their number of mapped sources.
func bucketCountries(coverage []models.CountryCoverage) CountryBuckets {
	b := CountryBuckets{Total: len(coverage)}
	for _, c := range coverage {
		switch {
		case c.Sources >= 3:
			b.Tri++
		case c.Sources == 2:
			b.Dual++
		case c.Sources == 1:
			b.Single++
		default:
			b.None++
		}
	}
	return b
}

// missingIndustries returns the required industries with no mapped indicators,
// in required order.
func missingIndustries(required []string, coverage []models.IndustryCoverage) []string {
	present := make(map[string]bool, len(coverage))
	for _, c := range coverage {
		if c.TotalConcepts > 0 {
			present[c.Industry] = true
		}
	}
	missing := []string{}
	for _, ind := range required {
		if !present[ind] {
			missing = append(missing, ind)
		}
	}
	return missing
}

// compareCount computes the relative variance of actual against baseline.
// With no baseline the count is reported as within threshold.
func compareCount(src models.Source, actual, baseline int64, threshold float64) SourceCount {
	sc := SourceCount{Source: src, Actual: actual, Baseline: baseline, Within: true}
	if baseline <= 0 {
		return sc
	}
	sc.Variance = math.Abs(float64(actual-baseline)) / float64(baseline)
	sc.Within = sc.Variance <= threshold
	return sc
}

func (sc SourceCount) warning() Warning {
	return Warning{
		Code: WarnCountVariance,
		Message: fmt.Sprintf("%s record count variance: %d vs expected %d (%.1f%%)",
			sc.Source, sc.Actual, sc.Baseline, sc.Variance*100),
	}
}

// familyCode returns the native code of f in src, or "" when f has none there.
func familyCode(f Family, src models.Source) string {
	switch src {
	case models.SourceWorldBank:
		return f.WBCode
	case models.SourceIMF:
		return f.IMFCode
	}
	return ""
}
