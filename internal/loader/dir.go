package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/features"
	"github.com/stockshastri/shastri/internal/macro"
	"github.com/stockshastri/shastri/internal/storage/archive"
)

// Source provides the inputs of the feature assembler.
type Source interface {
	Prices(ctx context.Context) ([]core.PriceObservation, error)
	Macro(ctx context.Context) ([]core.MacroObservation, error)
	Sentiment(ctx context.Context) ([]core.SentimentObservation, error)
	Events(ctx context.Context) ([]core.EventRecord, error)
}

// Files names each data file relative to the data root.
type Files struct {
	Prices        string `mapstructure:"prices"`
	FX            string `mapstructure:"fx"`
	RepoRate      string `mapstructure:"repo_rate"`
	Unemployment  string `mapstructure:"unemployment"`
	Macro         string `mapstructure:"macro"`
	MacroComplete string `mapstructure:"macro_complete"`
	Events        string `mapstructure:"events"`
	News          string `mapstructure:"news"`
	Sentiment     string `mapstructure:"sentiment"`
	Features      string `mapstructure:"features"`
}

// DefaultFiles returns the file layout of the data directory.
func DefaultFiles() Files {
	return Files{
		Prices:        "stocks.csv",
		FX:            "usdinr_raw.csv",
		RepoRate:      "repo_rate_raw.csv",
		Unemployment:  "unemployment_daily_clean.csv",
		Macro:         "macro_all_clean.csv",
		MacroComplete: "macro_complete.csv",
		Events:        "market_events.csv",
		News:          "financial_news.csv",
		Sentiment:     "sentiment_data.csv",
		Features:      "features.csv",
	}
}

// Dir is a Source over flat CSV files kept in archive storage, either a
// local directory or an S3 prefix.
type Dir struct {
	store archive.Storage
	files Files
}

// NewDir creates a Dir. Empty file names fall back to DefaultFiles.
func NewDir(store archive.Storage, files Files) *Dir {
	def := DefaultFiles()
	files.Prices = orDefault(files.Prices, def.Prices)
	files.FX = orDefault(files.FX, def.FX)
	files.RepoRate = orDefault(files.RepoRate, def.RepoRate)
	files.Unemployment = orDefault(files.Unemployment, def.Unemployment)
	files.Macro = orDefault(files.Macro, def.Macro)
	files.MacroComplete = orDefault(files.MacroComplete, def.MacroComplete)
	files.Events = orDefault(files.Events, def.Events)
	files.News = orDefault(files.News, def.News)
	files.Sentiment = orDefault(files.Sentiment, def.Sentiment)
	files.Features = orDefault(files.Features, def.Features)
	return &Dir{store: store, files: files}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Files returns the resolved file names.
func (d *Dir) Files() Files {
	return d.files
}

// open reads a whole file. Optional files that do not exist yield a nil reader.
func (d *Dir) open(ctx context.Context, name string, optional bool) (io.Reader, error) {
	data, err := d.store.Read(ctx, name)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, core.WrapError(core.ErrLoadFailed, fmt.Errorf("%s: %w", name, err))
	}
	return bytes.NewReader(data), nil
}

func (d *Dir) write(ctx context.Context, name string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("%s: %w", name, err))
	}
	if err := d.store.Write(ctx, name, buf.Bytes()); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("%s: %w", name, err))
	}
	return nil
}

// Prices reads the price file. It is required.
func (d *Dir) Prices(ctx context.Context) ([]core.PriceObservation, error) {
	r, err := d.open(ctx, d.files.Prices, false)
	if err != nil {
		return nil, err
	}
	return ReadPrices(r, d.files.Prices)
}

// Macro reads the daily macro table; missing file yields no rows.
func (d *Dir) Macro(ctx context.Context) ([]core.MacroObservation, error) {
	r, err := d.open(ctx, d.files.Macro, true)
	if err != nil || r == nil {
		return nil, err
	}
	return ReadMacro(r, d.files.Macro)
}

// Sentiment reads aggregated sentiment; missing file yields no rows.
func (d *Dir) Sentiment(ctx context.Context) ([]core.SentimentObservation, error) {
	r, err := d.open(ctx, d.files.Sentiment, true)
	if err != nil || r == nil {
		return nil, err
	}
	return ReadSentiment(r, d.files.Sentiment)
}

// Events reads market events; missing file yields no events.
func (d *Dir) Events(ctx context.Context) ([]core.EventRecord, error) {
	r, err := d.open(ctx, d.files.Events, true)
	if err != nil || r == nil {
		return nil, err
	}
	return ReadEvents(r, d.files.Events)
}

// Headlines reads the news file.
func (d *Dir) Headlines(ctx context.Context) ([]core.Headline, error) {
	r, err := d.open(ctx, d.files.News, false)
	if err != nil {
		return nil, err
	}
	return ReadHeadlines(r, d.files.News)
}

// FX reads USD/INR quotes.
func (d *Dir) FX(ctx context.Context) (calendar.Series, error) {
	r, err := d.open(ctx, d.files.FX, false)
	if err != nil {
		return calendar.Series{}, err
	}
	return ReadFX(r, d.files.FX)
}

// RepoRate reads the policy rate.
func (d *Dir) RepoRate(ctx context.Context) (calendar.Series, error) {
	r, err := d.open(ctx, d.files.RepoRate, false)
	if err != nil {
		return calendar.Series{}, err
	}
	return ReadRepoRate(r, d.files.RepoRate)
}

// Unemployment reads the unemployment series.
func (d *Dir) Unemployment(ctx context.Context) (calendar.Series, error) {
	r, err := d.open(ctx, d.files.Unemployment, false)
	if err != nil {
		return calendar.Series{}, err
	}
	return ReadUnemployment(r, d.files.Unemployment)
}

// Features reads the persisted feature table.
func (d *Dir) Features(ctx context.Context) (*features.Table, error) {
	r, err := d.open(ctx, d.files.Features, false)
	if err != nil {
		return nil, err
	}
	t, err := features.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.files.Features, err)
	}
	return t, nil
}

// WritePrices replaces the price file.
func (d *Dir) WritePrices(ctx context.Context, prices []core.PriceObservation) error {
	return d.write(ctx, d.files.Prices, func(w io.Writer) error { return WritePrices(w, prices) })
}

// WriteUnemployment replaces the unemployment file.
func (d *Dir) WriteUnemployment(ctx context.Context, s calendar.Series) error {
	return d.write(ctx, d.files.Unemployment, func(w io.Writer) error { return WriteSeries(w, s) })
}

// WriteMacro replaces the macro table.
func (d *Dir) WriteMacro(ctx context.Context, obs []core.MacroObservation) error {
	return d.write(ctx, d.files.Macro, func(w io.Writer) error { return WriteMacro(w, obs) })
}

// WriteMacroComplete replaces the macro table joined with event features.
func (d *Dir) WriteMacroComplete(ctx context.Context, flagColumns []string, days []macro.Day) error {
	return d.write(ctx, d.files.MacroComplete, func(w io.Writer) error {
		return WriteMacroComplete(w, flagColumns, days)
	})
}

// WriteSentiment replaces the sentiment file.
func (d *Dir) WriteSentiment(ctx context.Context, obs []core.SentimentObservation) error {
	return d.write(ctx, d.files.Sentiment, func(w io.Writer) error { return WriteSentiment(w, obs) })
}

// WriteFeatures replaces the feature table.
func (d *Dir) WriteFeatures(ctx context.Context, t *features.Table) error {
	return d.write(ctx, d.files.Features, t.WriteCSV)
}
