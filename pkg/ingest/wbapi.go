package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/fetch"
	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/retry"
)

// JSONGetter downloads and decodes one JSON document. *fetch.Fetcher implements it.
type JSONGetter interface {
	GetJSON(ctx context.Context, endpoint string, v any) error
}

var _ JSONGetter = (*fetch.Fetcher)(nil)

// WorldBankAPIConfig controls the indicator API reader.
type WorldBankAPIConfig struct {
	BaseURL string
	PerPage int
	From    int
	To      int
	// RPS paces requests; the API asks for no more than a few per second per client.
	RPS   float64
	Retry *retry.Config
	// Indicators defaults to every classified World Bank code.
	Indicators []string
}

type wbMeta struct {
	Page    jsonutil.FlexibleString `json:"page"`
	Pages   jsonutil.FlexibleString `json:"pages"`
	PerPage jsonutil.FlexibleString `json:"per_page"`
	Total   jsonutil.FlexibleString `json:"total"`
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type wbRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type wbRecord struct {
	Indicator   wbRef                   `json:"indicator"`
	Country     wbRef                   `json:"country"`
	CountryISO3 string                  `json:"countryiso3code"`
	Date        jsonutil.FlexibleString `json:"date"`
	Value       jsonutil.FlexibleFloat  `json:"value"`
}

// WorldBankAPI pages through the indicator API one indicator at a time.
// An indicator whose requests keep failing is reported through
// FailedIndicators and the remaining indicators continue, so one run lists
// every failure. The pipeline then refuses the result.
type WorldBankAPI struct {
	ctx     context.Context
	getter  JSONGetter
	limiter *rate.Limiter
	cfg     WorldBankAPIConfig
	logger  *zap.Logger

	next    int
	buf     []Row
	line    int
	failed  []string
	fetched int
}

// NewWorldBankAPI creates the reader. ctx bounds every request it makes.
func NewWorldBankAPI(ctx context.Context, getter JSONGetter, cfg WorldBankAPIConfig, logger *zap.Logger) *WorldBankAPI {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 1000
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if len(cfg.Indicators) == 0 {
		cfg.Indicators = industry.AllCodes(models.SourceWorldBank)
	}
	return &WorldBankAPI{
		ctx:     ctx,
		getter:  getter,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		cfg:     cfg,
		logger:  logger.Named("wbapi"),
	}
}

func (w *WorldBankAPI) Next() (Row, error) {
	for len(w.buf) == 0 {
		if w.next >= len(w.cfg.Indicators) {
			return Row{}, io.EOF
		}
		code := w.cfg.Indicators[w.next]
		w.next++

		rows, err := w.fetchIndicator(code)
		if err != nil {
			if ctxErr := w.ctx.Err(); ctxErr != nil {
				return Row{}, ctxErr
			}
			w.logger.Warn("Skipping indicator after failed requests",
				zap.String("indicator", code),
				zap.Error(err))
			w.failed = append(w.failed, code)
			continue
		}
		w.buf = rows
	}

	row := w.buf[0]
	w.buf = w.buf[1:]
	return row, nil
}

// FailedIndicators implements FailureReporter.
func (w *WorldBankAPI) FailedIndicators() []string {
	return w.failed
}

// Requests returns the number of pages fetched so far.
func (w *WorldBankAPI) Requests() int {
	return w.fetched
}

// fetchIndicator collects every page of one indicator.
func (w *WorldBankAPI) fetchIndicator(code string) ([]Row, error) {
	var rows []Row
	for page := 1; ; page++ {
		records, pages, err := w.fetchPage(code, page)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", code, page, err)
		}

		for i := range records {
			rows = append(rows, w.toRow(code, &records[i]))
		}

		if len(records) < w.cfg.PerPage || page >= pages {
			return rows, nil
		}
	}
}

func (w *WorldBankAPI) fetchPage(code string, page int) ([]wbRecord, int, error) {
	query := url.Values{
		"format":   {"json"},
		"per_page": {strconv.Itoa(w.cfg.PerPage)},
		"page":     {strconv.Itoa(page)},
	}
	if w.cfg.From > 0 && w.cfg.To > 0 {
		query.Set("date", fmt.Sprintf("%d:%d", w.cfg.From, w.cfg.To))
	}
	endpoint, err := fetch.BuildURL(w.cfg.BaseURL, query, "country", "all", "indicator", code)
	if err != nil {
		return nil, 0, err
	}

	var body []json.RawMessage
	err = retry.DoIfRetryable(w.ctx, w.cfg.Retry, func() error {
		if err := w.limiter.Wait(w.ctx); err != nil {
			return err
		}
		w.fetched++
		body = nil
		return w.getter.GetJSON(w.ctx, endpoint, &body)
	})
	if err != nil {
		return nil, 0, err
	}

	return decodePage(body)
}

// decodePage splits a [metadata, records] body.
func decodePage(body []json.RawMessage) ([]wbRecord, int, error) {
	if len(body) == 0 {
		return nil, 0, fmt.Errorf("empty response: %w", apperrors.ErrNoData)
	}

	var meta wbMeta
	if err := json.Unmarshal(body[0], &meta); err != nil {
		return nil, 0, fmt.Errorf("failed to parse page metadata: %w", err)
	}
	if len(meta.Message) > 0 {
		m := meta.Message[0]
		return nil, 0, fmt.Errorf("%w: api message %s: %s", apperrors.ErrInvalidInput, m.ID, m.Value)
	}

	pages, _ := strconv.Atoi(string(meta.Pages))
	if len(body) < 2 {
		return nil, pages, nil
	}

	var records []wbRecord
	if err := json.Unmarshal(body[1], &records); err != nil {
		return nil, 0, fmt.Errorf("failed to parse records: %w", err)
	}
	return records, pages, nil
}

func (w *WorldBankAPI) toRow(code string, rec *wbRecord) Row {
	w.line++

	country := rec.CountryISO3
	if country == "" {
		country = rec.Country.ID
	}
	name := rec.Indicator.Value
	if name == "" {
		name = code
	}

	value := ""
	if rec.Value.Valid {
		value = strconv.FormatFloat(rec.Value.Value, 'g', -1, 64)
	}

	return Row{
		Line:          w.line,
		CountryCode:   country,
		CountryName:   rec.Country.Value,
		IndicatorCode: code,
		IndicatorName: name,
		Cells:         []Cell{{Year: string(rec.Date), Value: value}},
	}
}
