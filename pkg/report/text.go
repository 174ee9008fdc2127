package report

import (
	"io"
	"strings"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/validation"
)

// topAnomalies is the number of anomalies listed in the console summary.
const topAnomalies = 5

// Recommendation thresholds of the console summary.
const (
	lowCompleteness      = 80
	manyInconsistencies  = 100
	manyAnomalies        = 500
	attentionScoreCutoff = 70
)

// Count formats n with thousands separators and the noun pluralized to match.
func Count(n int64, noun string) string {
	p := message.NewPrinter(language.English)
	if n != 1 {
		noun = inflection.Plural(noun)
	}
	return p.Sprintf("%d %s", n, noun)
}

// WriteSummary prints the human-readable outcome of a validation run.
func WriteSummary(w io.Writer, r *validation.Report) error {
	p := message.NewPrinter(language.English)
	s := r.Summary
	var b strings.Builder

	b.WriteString("TRI-SOURCE DATA VALIDATION SUMMARY\n")
	b.WriteString("==================================\n")
	p.Fprintf(&b, "Overall quality score: %.1f/100\n", s.QualityScore)
	p.Fprintf(&b, "Status: %s\n\n", s.Status)

	b.WriteString("Data overview:\n")
	p.Fprintf(&b, "   Total records: %d\n", s.TotalRecords)
	p.Fprintf(&b, "   Valid records: %d\n", s.ValidRecords)
	p.Fprintf(&b, "   Invalid records: %d\n", s.InvalidRecords)
	for _, c := range r.RecordCounts {
		if c.Baseline > 0 {
			p.Fprintf(&b, "   %s: %d (expected %d, variance %.1f%%)\n", c.Source, c.Actual, c.Baseline, c.Variance*100)
		} else {
			p.Fprintf(&b, "   %s: %d\n", c.Source, c.Actual)
		}
	}
	b.WriteString("\n")

	c := r.Coverage.Countries
	b.WriteString("Coverage:\n")
	p.Fprintf(&b, "   Total countries: %d\n", c.Total)
	p.Fprintf(&b, "   Tri-source countries: %d\n", c.Tri)
	p.Fprintf(&b, "   Dual-source countries: %d\n", c.Dual)
	p.Fprintf(&b, "   Single-source countries: %d\n", c.Single)
	if len(r.Coverage.MissingIndustries) > 0 {
		p.Fprintf(&b, "   Missing industries: %s\n", strings.Join(r.Coverage.MissingIndustries, ", "))
	}
	b.WriteString("\n")

	b.WriteString("Findings:\n")
	p.Fprintf(&b, "   %s\n", Count(int64(s.Inconsistencies), "cross-source inconsistency"))
	p.Fprintf(&b, "   %s\n", Count(int64(s.Anomalies), "anomaly"))
	p.Fprintf(&b, "   %s\n", Count(int64(s.Warnings), "warning"))
	b.WriteString("\n")

	if len(r.Anomalies) > 0 {
		b.WriteString("Top anomalies:\n")
		for i, a := range r.Anomalies {
			if i == topAnomalies {
				break
			}
			value := p.Sprintf("%v", a.Value)
			if a.RawValue != "" {
				value = a.RawValue
			}
			p.Fprintf(&b, "   - %s %s (%d): %s (%s)\n", a.CountryCode, a.IndicatorCode, a.Year, value, a.Issue)
		}
		b.WriteString("\n")
	}

	m := r.Metrics
	b.WriteString("Quality metrics:\n")
	p.Fprintf(&b, "   Completeness: %.1f%%\n", m.Completeness)
	p.Fprintf(&b, "   Consistency: %.1f%%\n", m.Consistency)
	p.Fprintf(&b, "   Coverage: %.1f%%\n", m.Coverage)
	p.Fprintf(&b, "   Accuracy: %.1f%%\n", m.Accuracy)
	p.Fprintf(&b, "Execution time: %.1f seconds\n\n", r.DurationSeconds)

	if recs := recommendations(r); len(recs) > 0 {
		b.WriteString("Recommendations:\n")
		for _, rec := range recs {
			b.WriteString("   - " + rec + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func recommendations(r *validation.Report) []string {
	if r.Summary.QualityScore >= attentionScoreCutoff {
		return nil
	}
	var recs []string
	if r.Metrics.Completeness < lowCompleteness {
		recs = append(recs, "Address data completeness issues")
	}
	if r.Summary.Inconsistencies > manyInconsistencies {
		recs = append(recs, "Review cross-source inconsistencies")
	}
	if r.Summary.Anomalies > manyAnomalies {
		recs = append(recs, "Investigate and clean anomalous data")
	}
	return recs
}

// WriteSourceSummary prints the row count of each source and the total.
func WriteSourceSummary(w io.Writer, counts map[models.Source]int64) error {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("TRI-SOURCE DATA SUMMARY\n")
	var total int64
	for _, src := range models.AllSources {
		n := counts[src]
		total += n
		p.Fprintf(&b, "   %-5s %s\n", src, Count(n, "record"))
	}
	p.Fprintf(&b, "   Total %s\n", Count(total, "record"))

	_, err := io.WriteString(w, b.String())
	return err
}
