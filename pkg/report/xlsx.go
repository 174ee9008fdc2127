package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-macro/pkg/validation"
)

// Sheet names of the XLSX report.
const (
	SheetSummary         = "Summary"
	SheetRecordCounts    = "Record Counts"
	SheetInconsistencies = "Inconsistencies"
	SheetAnomalies       = "Anomalies"
	SheetCoverage        = "Coverage"
	SheetWarnings        = "Warnings"
)

// WriteXLSX writes r as a workbook with one sheet per section into dir.
// Returns the written path.
func WriteXLSX(dir string, r *validation.Report) (string, error) {
	path, err := prepare(dir, FileName(r.FinishedAt, ".xlsx"))
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return "", fmt.Errorf("failed to name summary sheet: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetSummary, summaryRows(r)},
		{SheetRecordCounts, countRows(r)},
		{SheetInconsistencies, inconsistencyRows(r)},
		{SheetAnomalies, anomalyRows(r)},
		{SheetCoverage, coverageRows(r)},
		{SheetWarnings, warningRows(r)},
	}

	for _, s := range sheets {
		if s.name != SheetSummary {
			if _, err := f.NewSheet(s.name); err != nil {
				return "", fmt.Errorf("failed to add sheet %s: %w", s.name, err)
			}
		}
		if err := writeRows(f, s.name, s.rows); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func summaryRows(r *validation.Report) [][]any {
	s := r.Summary
	return [][]any{
		{"Metric", "Value"},
		{"Run ID", r.RunID.String()},
		{"Finished", r.FinishedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Status", s.Status},
		{"Quality score", s.QualityScore},
		{"Total records", s.TotalRecords},
		{"Valid records", s.ValidRecords},
		{"Invalid records", s.InvalidRecords},
		{"Completeness", r.Metrics.Completeness},
		{"Consistency", r.Metrics.Consistency},
		{"Coverage", r.Metrics.Coverage},
		{"Accuracy", r.Metrics.Accuracy},
		{"Inconsistencies", s.Inconsistencies},
		{"Anomalies", s.Anomalies},
		{"Warnings", s.Warnings},
	}
}

func countRows(r *validation.Report) [][]any {
	rows := [][]any{{"Source", "Actual", "Baseline", "Variance", "Within threshold"}}
	for _, c := range r.RecordCounts {
		rows = append(rows, []any{string(c.Source), c.Actual, c.Baseline, c.Variance, c.Within})
	}
	return rows
}

func inconsistencyRows(r *validation.Report) [][]any {
	rows := [][]any{{"Type", "Country", "Year", "WB value", "IMF value", "Variance", "Variance %"}}
	for _, inc := range r.Consistency.Inconsistencies {
		var pct any = ""
		if inc.VariancePercent != nil {
			pct = *inc.VariancePercent
		}
		rows = append(rows, []any{inc.Type, inc.CountryCode, inc.Year, inc.WBValue, inc.IMFValue, inc.Variance, pct})
	}
	return rows
}

func anomalyRows(r *validation.Report) [][]any {
	rows := [][]any{{"Type", "Source", "Country", "Indicator", "Year", "Value", "Z-score", "Issue"}}
	for _, a := range r.Anomalies {
		var value any = a.Value
		if a.RawValue != "" {
			value = a.RawValue
		}
		rows = append(rows, []any{a.Type, string(a.Source), a.CountryCode, a.IndicatorCode, a.Year, value, a.ZScore, a.Issue})
	}
	return rows
}

func coverageRows(r *validation.Report) [][]any {
	c := r.Coverage.Countries
	rows := [][]any{
		{"Countries", "Count"},
		{"Total", c.Total},
		{"Tri-source", c.Tri},
		{"Dual-source", c.Dual},
		{"Single-source", c.Single},
		{"No source", c.None},
		{},
		{"Industry", "Concepts", "WB", "OECD", "IMF", "Missing"},
	}
	missing := make(map[string]bool, len(r.Coverage.MissingIndustries))
	for _, ind := range r.Coverage.MissingIndustries {
		missing[ind] = true
	}
	for _, ind := range r.Coverage.Industries {
		rows = append(rows, []any{ind.Industry, ind.TotalConcepts, ind.WBIndicators, ind.OECDIndicators, ind.IMFIndicators, missing[ind.Industry]})
		delete(missing, ind.Industry)
	}
	for _, ind := range r.Coverage.MissingIndustries {
		if missing[ind] {
			rows = append(rows, []any{ind, 0, 0, 0, 0, true})
		}
	}
	return rows
}

func warningRows(r *validation.Report) [][]any {
	rows := [][]any{{"Code", "Message"}}
	for _, w := range r.Warnings {
		rows = append(rows, []any{w.Code, w.Message})
	}
	return rows
}
