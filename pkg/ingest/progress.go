package ingest

import (
	"io"
	"sort"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

// Progress receives human-facing progress of a run.
type Progress interface {
	// Rows is called every progress interval while reading.
	Rows(stats Stats)
	// Chunk is called after each persisted chunk.
	Chunk(c repositories.ChunkProgress)
	// Summary is called once the run has been read.
	Summary(stats Stats)
}

type nopProgress struct{}

func (nopProgress) Rows(Stats)                       {}
func (nopProgress) Chunk(repositories.ChunkProgress) {}
func (nopProgress) Summary(Stats)                    {}

// TextProgress writes line-oriented progress with thousands separators.
type TextProgress struct {
	mu sync.Mutex
	w  io.Writer
	p  *message.Printer
}

// NewTextProgress creates a TextProgress writing to w.
func NewTextProgress(w io.Writer) *TextProgress {
	return &TextProgress{w: w, p: message.NewPrinter(language.English)}
}

func (t *TextProgress) Rows(s Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Fprintf(t.w, "[%s] processed %d rows, %d valid data points, %d validation errors\n",
		s.Source, s.RowsSeen, s.ValidPoints, s.ValidationErrors)
}

func (t *TextProgress) Chunk(c repositories.ChunkProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Fprintf(t.w, "[%s] inserted batch %d/%d (%d records, %d total)\n",
		c.Source, c.Chunk, c.Chunks, c.Rows, c.Inserted)
}

func (t *TextProgress) Summary(s Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Fprintf(t.w, "[%s] rows: %d\n", s.Source, s.RowsSeen)
	t.p.Fprintf(t.w, "[%s] valid data points: %d\n", s.Source, s.ValidPoints)
	t.p.Fprintf(t.w, "[%s] validation errors: %d\n", s.Source, s.ValidationErrors)
	t.p.Fprintf(t.w, "[%s] skipped rows: %d\n", s.Source, s.SkippedRows)
	if s.Duplicates > 0 {
		t.p.Fprintf(t.w, "[%s] duplicate points dropped: %d\n", s.Source, s.Duplicates)
	}
	if s.SuspiciousFields > 0 {
		t.p.Fprintf(t.w, "[%s] suspicious fields: %d\n", s.Source, s.SuspiciousFields)
	}
	for _, name := range sortedKeys(s.Industries) {
		t.p.Fprintf(t.w, "[%s]   %s: %d data points\n", s.Source, name, s.Industries[name])
	}
	for _, code := range s.FailedIndicators {
		t.p.Fprintf(t.w, "[%s] failed indicator: %s\n", s.Source, code)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
