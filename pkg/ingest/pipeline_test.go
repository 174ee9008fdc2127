package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/mappings"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

// sliceReader replays fixed rows and errors.
type sliceReader struct {
	items []any // Row or error
}

func (s *sliceReader) Next() (Row, error) {
	if len(s.items) == 0 {
		return Row{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	switch v := item.(type) {
	case Row:
		return v, nil
	case error:
		return Row{}, v
	}
	panic("unexpected item")
}

type recordingProgress struct {
	rows    []Stats
	summary *Stats
}

func (r *recordingProgress) Rows(s Stats)                     { r.rows = append(r.rows, s) }
func (r *recordingProgress) Chunk(repositories.ChunkProgress) {}
func (r *recordingProgress) Summary(s Stats)                  { r.summary = &s }

func wbResolver() Resolver {
	return WithClassifierFallback(mappings.NewSnapshot(models.SourceWorldBank, nil, nil))
}

func imfSnapshot() *mappings.Snapshot {
	return mappings.NewSnapshot(models.SourceIMF,
		[]models.IndicatorMapping{
			{UnifiedConcept: "CON_GDP growth", IMFCode: models.StringPtr("NGDP_RPCH"), Industry: "context"},
		},
		[]models.CountryMapping{
			{UnifiedCode: "USA", CountryName: "United States", IMFCode: models.StringPtr("111")},
		})
}

func runPipeline(t *testing.T, policy Policy, resolver Resolver, r RowReader) *Result {
	t.Helper()
	res, err := NewPipeline(policy, resolver, nil, 0, zap.NewNop()).Run(context.Background(), r)
	require.NoError(t, err)
	return res
}

func TestPipeline_WorldBankRowClassifiedAsEnergy(t *testing.T) {
	csv := "Country Name,Country Code,Indicator Name,Indicator Code,2020\n" +
		"United States,USA,Access to electricity (% of population),EG.ELC.ACCS.ZS,100.0\n"
	reader, err := NewWorldBankCSV(strings.NewReader(csv))
	require.NoError(t, err)

	res := runPipeline(t, WorldBankPolicy(), wbResolver(), reader)

	require.Len(t, res.Observations, 1)
	obs := res.Observations[0]
	assert.Equal(t, "USA", obs.CountryCode)
	assert.Equal(t, "EG.ELC.ACCS.ZS", obs.IndicatorCode)
	assert.Equal(t, 2020, obs.Year)
	assert.Equal(t, 100.0, obs.Value)
	assert.Equal(t, "energy", obs.Industry)
	assert.Equal(t, models.SourceWorldBank, obs.Source)
	assert.Equal(t, 5, obs.DataQualityScore)
	assert.Equal(t, map[string]int{"energy": 1}, res.Stats.Industries)
}

func TestPipeline_RegistryWinsOverClassifier(t *testing.T) {
	snap := mappings.NewSnapshot(models.SourceWorldBank,
		[]models.IndicatorMapping{
			{UnifiedConcept: "INFRASTRUCTURE_EG.ELC.ACCS.ZS", WBCode: models.StringPtr("EG.ELC.ACCS.ZS"), Industry: "infrastructure"},
			{UnifiedConcept: "CUSTOM_X", WBCode: models.StringPtr("XX.CUSTOM"), Industry: "trade"},
		}, nil)
	r := WithClassifierFallback(snap)

	ind, ok := r.IndicatorIndustry("XX.CUSTOM")
	require.True(t, ok)
	assert.Equal(t, "trade", ind)

	ind, ok = r.IndicatorIndustry("EG.ELC.ACCS.ZS")
	require.True(t, ok)
	assert.Equal(t, "infrastructure", ind)

	_, ok = r.IndicatorIndustry("ZZ.NOPE")
	assert.False(t, ok)
}

func TestPipeline_WideRowFansOutValidYears(t *testing.T) {
	row := Row{
		CountryCode:   "FRA",
		CountryName:   "France",
		IndicatorCode: "NY.GDP.MKTP.KD.ZG",
		IndicatorName: "GDP growth (annual %)",
		Cells: []Cell{
			{Year: "1959", Value: "1.0"}, // before range
			{Year: "2019", Value: "1.8"},
			{Year: "2020", Value: "-7.5"},
			{Year: "2021", Value: ""},
			{Year: "2022", Value: ".."},
			{Year: "2023", Value: "75"}, // outside the GDP growth bound
		},
	}

	res := runPipeline(t, WorldBankPolicy(), wbResolver(), &sliceReader{items: []any{row}})

	require.Len(t, res.Observations, 2)
	assert.Equal(t, 2019, res.Observations[0].Year)
	assert.Equal(t, -7.5, res.Observations[1].Value)
	assert.Equal(t, "context", res.Observations[0].Industry)
	assert.Equal(t, 0, res.Stats.ValidationErrors)
	assert.Equal(t, 1, res.Stats.RowsSeen)
}

func TestPipeline_WorldBankRequiresNames(t *testing.T) {
	rows := []any{
		Row{CountryCode: "USA", IndicatorCode: "EG.ELC.ACCS.ZS", IndicatorName: "Access", Cells: []Cell{{Year: "2020", Value: "1"}}},
		Row{CountryCode: "us", CountryName: "United States", IndicatorCode: "EG.ELC.ACCS.ZS", IndicatorName: "Access"},
	}

	res := runPipeline(t, WorldBankPolicy(), wbResolver(), &sliceReader{items: rows})
	assert.Empty(t, res.Observations)
	assert.Equal(t, 2, res.Stats.ValidationErrors)
}

func TestPipeline_WorldBankUnmappedIndicatorSkipped(t *testing.T) {
	row := Row{CountryCode: "USA", CountryName: "United States", IndicatorCode: "ZZ.UNKNOWN", IndicatorName: "Unknown",
		Cells: []Cell{{Year: "2020", Value: "1"}}}

	res := runPipeline(t, WorldBankPolicy(), wbResolver(), &sliceReader{items: []any{row}})
	assert.Empty(t, res.Observations)
	assert.Equal(t, 1, res.Stats.SkippedRows)
	assert.Equal(t, 0, res.Stats.ValidationErrors)
}

func TestPipeline_OECDUnknownMeasureDefaultsToGeneral(t *testing.T) {
	csv := "REF_AREA,MEASURE,TIME_PERIOD,OBS_VALUE,Measure\n" +
		"FRA,ZZZUNKNOWN,2021,2.5,Unknown measure\n"
	reader, err := NewOECDCSV(strings.NewReader(csv))
	require.NoError(t, err)

	res := runPipeline(t, OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), reader)

	require.Len(t, res.Observations, 1)
	obs := res.Observations[0]
	assert.Equal(t, "FRA", obs.CountryCode)
	assert.Equal(t, "FRA", obs.CountryName)
	assert.Equal(t, industry.General, obs.Industry)
	assert.Equal(t, 2021, obs.Year)
	assert.Equal(t, 2.5, obs.Value)
	assert.Equal(t, models.SourceOECD, obs.Source)
	assert.Equal(t, 4, obs.DataQualityScore)
}

func TestPipeline_OECDMissingValueIsSkipNotError(t *testing.T) {
	rows := []any{
		Row{CountryCode: "FRA", IndicatorCode: "B", Cells: []Cell{{Year: "2021", Value: ""}}, Long: true},
		Row{CountryCode: "FRA", IndicatorCode: "B", Cells: []Cell{{Year: "20X1", Value: "1"}}, Long: true},
	}

	res := runPipeline(t, OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), &sliceReader{items: rows})
	assert.Empty(t, res.Observations)
	assert.Equal(t, 1, res.Stats.SkippedRows)
	assert.Equal(t, 1, res.Stats.ValidationErrors)
}

func TestPipeline_IMFCountryCodeOutOfRange(t *testing.T) {
	csv := "WEO Country Code,WEO Subject Code,Country,Subject Descriptor,Units,2020\n" +
		"99,NGDP_RPCH,Nowhere,GDP growth,Percent change,1.0\n" +
		"111,NGDP_RPCH,United States,GDP growth,Percent change,-2.2\n"
	reader, err := NewIMFCSV(strings.NewReader(csv))
	require.NoError(t, err)

	res := runPipeline(t, IMFPolicy(), imfSnapshot(), reader)

	assert.Equal(t, 1, res.Stats.ValidationErrors)
	require.Len(t, res.Observations, 1)
	obs := res.Observations[0]
	assert.Equal(t, "USA", obs.CountryCode)
	assert.Equal(t, "111", obs.SourceCountryCode)
	assert.Equal(t, "Percent change", obs.Units)
	assert.Equal(t, "context", obs.Industry)
}

func TestPipeline_PolicyDivergence(t *testing.T) {
	unmapped := func() *sliceReader {
		return &sliceReader{items: []any{
			Row{CountryCode: "111", CountryName: "United States", IndicatorCode: "ZZZUNKNOWN",
				Cells: []Cell{{Year: "2020", Value: "1"}}},
		}}
	}

	// IMF drops what it cannot map.
	imf := runPipeline(t, IMFPolicy(), imfSnapshot(), unmapped())
	assert.Empty(t, imf.Observations)
	assert.Equal(t, 1, imf.Stats.SkippedRows)

	// The same unmapped measure from OECD is kept under the catch-all industry.
	oecd := runPipeline(t, OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), &sliceReader{items: []any{
		Row{CountryCode: "USA", IndicatorCode: "ZZZUNKNOWN", Cells: []Cell{{Year: "2020", Value: "1"}}, Long: true},
	}})
	require.Len(t, oecd.Observations, 1)
	assert.Equal(t, industry.General, oecd.Observations[0].Industry)
}

func TestPipeline_IMFUnmappedCountrySkipped(t *testing.T) {
	row := Row{CountryCode: "999", CountryName: "Elsewhere", IndicatorCode: "NGDP_RPCH",
		Cells: []Cell{{Year: "2020", Value: "1"}}}

	res := runPipeline(t, IMFPolicy(), imfSnapshot(), &sliceReader{items: []any{row}})
	assert.Empty(t, res.Observations)
	assert.Equal(t, 1, res.Stats.SkippedRows)
}

func TestPipeline_DuplicateKeysDropped(t *testing.T) {
	row := Row{CountryCode: "DEU", IndicatorCode: "G_XGDP", Cells: []Cell{{Year: "2020", Value: "3.1"}}, Long: true}

	res := runPipeline(t, OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), &sliceReader{items: []any{row, row}})
	assert.Len(t, res.Observations, 1)
	assert.Equal(t, 1, res.Stats.Duplicates)
}

func TestPipeline_MalformedRowCountedAndStreamContinues(t *testing.T) {
	rows := []any{
		&RowError{Line: 2, Err: ErrMalformedRow},
		Row{CountryCode: "DEU", IndicatorCode: "G_XGDP", Cells: []Cell{{Year: "2020", Value: "3.1"}}, Long: true},
	}

	res := runPipeline(t, OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), &sliceReader{items: rows})
	assert.Equal(t, 2, res.Stats.RowsSeen)
	assert.Equal(t, 1, res.Stats.ValidationErrors)
	assert.Len(t, res.Observations, 1)
}

func TestPipeline_ReaderFailureIsFatal(t *testing.T) {
	boom := errors.New("connection reset by peer")
	_, err := NewPipeline(OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), nil, 0, zap.NewNop()).
		Run(context.Background(), &sliceReader{items: []any{boom}})
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), nil, 0, zap.NewNop()).
		Run(ctx, &sliceReader{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_SuspiciousFieldsCountedNotRejected(t *testing.T) {
	row := Row{CountryCode: "USA", CountryName: "United States", IndicatorCode: "EG.ELC.ACCS.ZS",
		IndicatorName: "1' OR '1'='1", Cells: []Cell{{Year: "2020", Value: "99"}}}

	res := runPipeline(t, WorldBankPolicy(), wbResolver(), &sliceReader{items: []any{row}})
	assert.Equal(t, 1, res.Stats.SuspiciousFields)
	assert.Len(t, res.Observations, 1)
}

func TestPipeline_ProgressEveryInterval(t *testing.T) {
	var items []any
	for i := 0; i < 5; i++ {
		items = append(items, Row{CountryCode: "DEU", IndicatorCode: "G_XGDP",
			Cells: []Cell{{Year: "2020", Value: "1"}}, Long: true})
	}
	progress := &recordingProgress{}

	_, err := NewPipeline(OECDPolicy(), mappings.NewSnapshot(models.SourceOECD, nil, nil), progress, 2, zap.NewNop()).
		Run(context.Background(), &sliceReader{items: items})
	require.NoError(t, err)

	require.Len(t, progress.rows, 2)
	assert.Equal(t, 2, progress.rows[0].RowsSeen)
	assert.Equal(t, 4, progress.rows[1].RowsSeen)
	require.NotNil(t, progress.summary)
	assert.Equal(t, 5, progress.summary.RowsSeen)
}

func TestTextProgress_ThousandsSeparators(t *testing.T) {
	var buf bytes.Buffer
	p := NewTextProgress(&buf)

	p.Rows(Stats{Source: models.SourceWorldBank, RowsSeen: 50000, ValidPoints: 1234567})
	p.Chunk(repositories.ChunkProgress{Source: models.SourceWorldBank, Chunk: 3, Chunks: 12, Rows: 1000, Inserted: 3000})

	out := buf.String()
	assert.Contains(t, out, "processed 50,000 rows, 1,234,567 valid data points")
	assert.Contains(t, out, "inserted batch 3/12 (1,000 records, 3,000 total)")
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(models.SourceIMF)
	require.NoError(t, err)
	assert.Equal(t, CountrySkip, p.OnUnmappedCountry)
	assert.Equal(t, 1980, p.Years.Min)

	_, err = PolicyFor(models.Source("ECB"))
	assert.Error(t, err)

	assert.Equal(t, models.SourceOECD, KindOECD.Source())
	assert.Equal(t, IndicatorDefault, KindOECD.Policy().OnUnmappedIndicator)
	assert.Equal(t, models.SourceWorldBank, KindWorldBankAPI.Source())
}
