package ingest

import (
	"errors"
	"io"

	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// MetadataStats counts the outcome of reading one auxiliary file.
type MetadataStats struct {
	Rows    int
	Kept    int
	Invalid int
}

// eachRecord calls fn for every decodable record; malformed lines count as invalid.
func eachRecord(src *csvSource, stats *MetadataStats, fn func(rec []string) bool) error {
	for {
		rec, _, err := src.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			stats.Rows++
			stats.Invalid++
			continue
		}
		if err != nil {
			return err
		}
		stats.Rows++
		if !fn(rec) {
			stats.Invalid++
		}
	}
}

func targetSet() map[string]struct{} {
	codes := industry.AllCodes(models.SourceWorldBank)
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

func classify(code string) string {
	if ind, ok := industry.Classify(code); ok {
		return ind
	}
	return industry.General
}

// ReadCountryMetadata reads WDICountry.csv.
func ReadCountryMetadata(r io.Reader) ([]models.CountryMetadata, MetadataStats, error) {
	var stats MetadataStats
	src, err := newCSVSource(r)
	if err != nil {
		return nil, stats, err
	}
	if err := src.require("Country Code"); err != nil {
		return nil, stats, err
	}

	var out []models.CountryMetadata
	err = eachRecord(src, &stats, func(rec []string) bool {
		code, ok := sanitize.CountryCode(src.field(rec, "Country Code"), models.SourceWorldBank)
		if !ok {
			return false
		}
		short, _ := sanitize.Text(src.field(rec, "Short Name"), 100)
		table, _ := sanitize.Text(src.field(rec, "Table Name"), 100)
		region, _ := sanitize.Text(src.field(rec, "Region"), 100)
		income, _ := sanitize.Text(src.field(rec, "Income Group"), 100)
		if short == "" {
			short = table
		}
		if short == "" {
			short = code
		}
		out = append(out, models.CountryMetadata{
			CountryCode: code,
			ShortName:   short,
			TableName:   table,
			Region:      region,
			IncomeGroup: income,
		})
		stats.Kept++
		return true
	})
	return out, stats, err
}

// ReadSeriesMetadata reads WDISeries.csv, keeping the classified indicators.
func ReadSeriesMetadata(r io.Reader) ([]models.IndicatorMetadata, MetadataStats, error) {
	var stats MetadataStats
	src, err := newCSVSource(r)
	if err != nil {
		return nil, stats, err
	}
	if err := src.require("Series Code"); err != nil {
		return nil, stats, err
	}

	targets := targetSet()
	var out []models.IndicatorMetadata
	err = eachRecord(src, &stats, func(rec []string) bool {
		code, ok := sanitize.IndicatorCode(src.field(rec, "Series Code"))
		if !ok {
			return false
		}
		if _, wanted := targets[code]; !wanted {
			return true
		}
		name, ok := sanitize.Text(src.field(rec, "Indicator Name"), 255)
		if !ok {
			name = code
		}
		def, _ := sanitize.Text(src.field(rec, "Long definition"), 4000)
		unit, _ := sanitize.Text(src.field(rec, "Unit of measure"), 100)
		note, _ := sanitize.Text(src.field(rec, "Source"), 1000)
		topic, _ := sanitize.Text(src.field(rec, "Topic"), 255)
		periodicity, _ := sanitize.Text(src.field(rec, "Periodicity"), 50)

		out = append(out, models.IndicatorMetadata{
			IndicatorCode: code,
			IndicatorName: name,
			Definition:    def,
			UnitOfMeasure: unit,
			SourceNote:    note,
			Topic:         topic,
			Periodicity:   periodicity,
			Industry:      classify(code),
		})
		stats.Kept++
		return true
	})
	return out, stats, err
}

// ReadAvailability reads WDICountry-series.csv, keeping the classified indicators.
func ReadAvailability(r io.Reader) ([]models.Availability, MetadataStats, error) {
	var stats MetadataStats
	src, err := newCSVSource(r)
	if err != nil {
		return nil, stats, err
	}
	if err := src.require("Country Code", "Series Code"); err != nil {
		if err := src.require("CountryCode", "SeriesCode"); err != nil {
			return nil, stats, err
		}
	}

	targets := targetSet()
	var out []models.Availability
	err = eachRecord(src, &stats, func(rec []string) bool {
		country, okCountry := sanitize.CountryCode(src.field(rec, "Country Code", "CountryCode"), models.SourceWorldBank)
		code, okCode := sanitize.IndicatorCode(src.field(rec, "Series Code", "SeriesCode"))
		if !okCountry || !okCode {
			return false
		}
		if _, wanted := targets[code]; !wanted {
			return true
		}
		updated, _ := sanitize.Text(src.field(rec, "Last Updated Date"), 50)
		out = append(out, models.Availability{
			CountryCode:   country,
			IndicatorCode: code,
			LastUpdated:   updated,
		})
		stats.Kept++
		return true
	})
	return out, stats, err
}
