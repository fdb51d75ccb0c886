package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/stockshastri/shastri/internal/backtest"
	"github.com/stockshastri/shastri/internal/calendar"
	"github.com/stockshastri/shastri/internal/collector"
	"github.com/stockshastri/shastri/internal/config"
	"github.com/stockshastri/shastri/internal/core"
	"github.com/stockshastri/shastri/internal/features"
	"github.com/stockshastri/shastri/internal/loader"
	"github.com/stockshastri/shastri/internal/macro"
	"github.com/stockshastri/shastri/internal/metrics"
	"github.com/stockshastri/shastri/internal/model"
	"github.com/stockshastri/shastri/internal/notifier"
	"github.com/stockshastri/shastri/internal/predictor"
	"github.com/stockshastri/shastri/internal/sentiment"
	"github.com/stockshastri/shastri/internal/storage/archive"
	"github.com/stockshastri/shastri/internal/storage/postgres"
	"go.uber.org/zap"
)

// Collector names looked up in the registry
const (
	CollectorYahoo     = "yahoo"
	CollectorWorldBank = "worldbank"
)

const unemploymentSeries = "unemployment_rate"

// Store is the relational store used when data.source is postgres.
// Satisfied by *postgres.Repository.
type Store interface {
	loader.Source
	EnsureSchema(ctx context.Context) error
	UpsertPrices(ctx context.Context, prices []core.PriceObservation) (int, error)
	UpsertSentiment(ctx context.Context, obs []core.SentimentObservation) error
	ReplaceMacro(ctx context.Context, obs []core.MacroObservation) error
	InsertEvents(ctx context.Context, evs []core.EventRecord) error
	Stats(ctx context.Context) (*postgres.Status, error)
}

// TrainResult summarizes a training run
type TrainResult struct {
	ModelID string          `json:"model_id"`
	Metrics model.Metrics   `json:"metrics"`
	Report  features.Report `json:"report"`
	Seconds float64         `json:"duration_seconds"`
}

// MacroResult summarizes a macro refresh
type MacroResult struct {
	Days        int      `json:"days"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	FlagColumns []string `json:"flag_columns"`
}

// App wires the data sources, the pipeline stages and the live predictor
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	files      *loader.Dir
	store      Store
	artifacts  archive.Storage
	collectors *collector.Registry
	assembler  *features.Assembler
	predictor  *predictor.Predictor
	metrics    *metrics.Registry
	notifiers  *notifier.Registry
	universe   core.Universe

	// writeMu serializes operations that replace persisted data or the model
	writeMu sync.Mutex
}

// New creates an App over the archive storage holding data files and the
// model artifact.
func New(cfg *config.Config, store archive.Storage, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	universe := cfg.Universe()

	return &App{
		cfg:        cfg,
		logger:     logger,
		files:      loader.NewDir(store, cfg.Data.Files),
		artifacts:  store,
		collectors: collector.NewRegistry(),
		assembler:  features.NewAssembler(logger.Named("assembler")),
		predictor:  predictor.New(universe),
		universe:   universe,
	}
}

// SetStore attaches the relational store. Collected data is always
// mirrored into it; it becomes the read source when data.source is
// postgres.
func (a *App) SetStore(s Store) {
	a.store = s
}

// SetMetrics enables metrics recording
func (a *App) SetMetrics(reg *metrics.Registry) {
	a.metrics = reg
}

// SetNotifiers enables pipeline event notifications
func (a *App) SetNotifiers(reg *notifier.Registry) {
	a.notifiers = reg
}

// notify delivers ev to every notifier. Delivery failures are logged and
// never fail the pipeline run.
func (a *App) notify(ctx context.Context, ev notifier.Event) {
	if a.notifiers == nil || a.notifiers.Len() == 0 {
		return
	}
	for name, err := range a.notifiers.NotifyAll(ctx, ev) {
		a.logger.Warn("notification failed",
			zap.String("notifier", name),
			zap.String("event", ev.Type),
			zap.Error(err))
	}
}

// RegisterCollector adds a collector to the app
func (a *App) RegisterCollector(c collector.Collector) {
	a.collectors.Register(c)
}

// Predictor returns the live predictor
func (a *App) Predictor() *predictor.Predictor {
	return a.predictor
}

// Files returns the flat-file layout
func (a *App) Files() *loader.Dir {
	return a.files
}

// Universe returns the configured instruments
func (a *App) Universe() core.Universe {
	return a.universe
}

func (a *App) source() loader.Source {
	if a.store != nil && a.cfg.Data.Source == config.SourcePostgres {
		return a.store
	}
	return a.files
}

// PrepareFeatures assembles the feature table from the configured source
// and persists it as the feature CSV.
func (a *App) PrepareFeatures(ctx context.Context) (*features.Table, features.Report, error) {
	src := a.source()

	prices, err := src.Prices(ctx)
	if err != nil {
		return nil, features.Report{}, err
	}
	macroObs, err := src.Macro(ctx)
	if err != nil {
		return nil, features.Report{}, err
	}
	sent, err := src.Sentiment(ctx)
	if err != nil {
		return nil, features.Report{}, err
	}
	evs, err := src.Events(ctx)
	if err != nil {
		return nil, features.Report{}, err
	}

	table, report, err := a.assembler.Assemble(features.Input{
		Prices:    prices,
		Macro:     macroObs,
		Sentiment: sent,
		Events:    evs,
	})
	if err != nil {
		return nil, report, err
	}
	if err := table.Validate(); err != nil {
		return nil, report, err
	}
	if a.metrics != nil {
		a.metrics.RecordAssembly(len(table.Rows), report.Dropped)
	}

	if err := a.files.WriteFeatures(ctx, table); err != nil {
		return nil, report, err
	}
	return table, report, nil
}

// UpdateMacro rebuilds the daily macro table over the study window from
// the raw USD/INR, repo-rate and unemployment series, persists it, and
// writes the event-enriched macro_complete table. Unemployment is
// downloaded when the World Bank collector is registered.
func (a *App) UpdateMacro(ctx context.Context) (*MacroResult, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	start, end, err := a.cfg.Data.Window()
	if err != nil {
		return nil, err
	}

	fx, err := a.files.FX(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := a.files.RepoRate(ctx)
	if err != nil {
		return nil, err
	}
	unemployment, err := a.unemployment(ctx, start, end)
	if err != nil {
		return nil, err
	}

	obs, err := macro.Build(start, end, fx, repo, unemployment)
	if err != nil {
		return nil, err
	}
	if err := a.files.WriteMacro(ctx, obs); err != nil {
		return nil, err
	}
	if a.store != nil {
		if err := a.store.ReplaceMacro(ctx, obs); err != nil {
			return nil, err
		}
	}

	evs, err := a.source().Events(ctx)
	if err != nil {
		return nil, err
	}
	days, flagColumns := macro.Complete(obs, evs)
	if err := a.files.WriteMacroComplete(ctx, flagColumns, days); err != nil {
		return nil, err
	}

	a.logger.Info("macro table rebuilt",
		zap.Int("days", len(obs)),
		zap.Int("events", len(evs)),
		zap.Strings("flags", flagColumns))

	res := &MacroResult{
		Days:        len(obs),
		Start:       start.Format(core.DateLayout),
		End:         end.Format(core.DateLayout),
		FlagColumns: flagColumns,
	}
	a.notify(ctx, notifier.NewEvent(notifier.EventMacroUpdated, "macro table rebuilt", map[string]any{
		"days":  res.Days,
		"start": res.Start,
		"end":   res.End,
	}))
	return res, nil
}

func (a *App) unemployment(ctx context.Context, start, end time.Time) (calendar.Series, error) {
	ic, ok := a.collectors.Indicator(CollectorWorldBank)
	if !ok {
		return a.files.Unemployment(ctx)
	}
	series, err := ic.FetchSeries(ctx, start, end)
	if err != nil {
		return calendar.Series{}, err
	}
	series.Name = unemploymentSeries
	return carryIntoWindow(series, start), nil
}

// carryIntoWindow re-dates the last observation before start to start,
// unless start is observed itself.
func carryIntoWindow(s calendar.Series, start time.Time) calendar.Series {
	start = core.Day(start)
	var carried *calendar.Point
	for i := range s.Points {
		d := core.Day(s.Points[i].Date)
		if d.Equal(start) {
			return s
		}
		if d.Before(start) && (carried == nil || d.After(carried.Date)) {
			carried = &s.Points[i]
		}
	}
	if carried == nil {
		return s
	}
	points := make([]calendar.Point, 0, len(s.Points)+1)
	points = append(points, calendar.Point{Date: start, Value: carried.Value})
	points = append(points, s.Points...)
	calendar.SortPoints(points)
	return calendar.Series{Name: s.Name, Points: points}
}

// Train assembles features, fits the forest on the chronologically first
// part of the table, scores the rest, persists the artifact and swaps it
// into the predictor.
func (a *App) Train(ctx context.Context) (*TrainResult, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	started := time.Now()
	res, err := a.train(ctx)
	duration := time.Since(started)

	status := "success"
	if err != nil {
		status = "failure"
	}
	if a.metrics != nil {
		a.metrics.RecordTraining(status, duration.Seconds())
	}
	if err != nil {
		a.logger.Error("training failed", zap.Error(err))
		a.notify(ctx, notifier.NewEvent(notifier.EventTrainingFailed, "training failed", map[string]any{
			"error": err.Error(),
		}))
		return nil, err
	}
	res.Seconds = duration.Seconds()
	a.notify(ctx, notifier.NewEvent(notifier.EventTrainingCompleted, "model retrained", map[string]any{
		"model_id":         res.ModelID,
		"accuracy":         res.Metrics.Accuracy,
		"f1":               res.Metrics.F1,
		"train_rows":       res.Metrics.TrainRows,
		"test_rows":        res.Metrics.TestRows,
		"duration_seconds": res.Seconds,
	}))
	return res, nil
}

func (a *App) train(ctx context.Context) (*TrainResult, error) {
	table, report, err := a.PrepareFeatures(ctx)
	if err != nil {
		return nil, err
	}

	trainSet, testSet := table.SplitByDate(a.cfg.Model.TrainFraction)
	if len(trainSet.Rows) == 0 || len(testSet.Rows) == 0 {
		return nil, core.WrapError(core.ErrTrainingFailed,
			fmt.Errorf("%d rows cannot be split %.2f into non-empty train and holdout sets", len(table.Rows), a.cfg.Model.TrainFraction))
	}

	names := table.FeatureNames()
	X, y, err := trainSet.Matrix(names)
	if err != nil {
		return nil, err
	}
	forest, err := model.Train(ctx, X, y, a.cfg.Model.Params)
	if err != nil {
		return nil, err
	}

	replay, err := backtest.New(forest, names).Run(ctx, testSet)
	if err != nil {
		return nil, err
	}
	m := model.Evaluate(replay.Predictions, replay.Labels)
	m.TrainRows = len(trainSet.Rows)
	m.Strategy = replay.Stats

	artifact := model.NewArtifact(forest, names, m)
	if err := model.Save(ctx, a.artifacts, a.cfg.Model.ArtifactKey, artifact); err != nil {
		return nil, err
	}
	if err := a.swap(artifact, table); err != nil {
		return nil, err
	}

	a.logger.Info("model trained",
		zap.String("model_id", artifact.ID),
		zap.Int("train_rows", m.TrainRows),
		zap.Int("test_rows", m.TestRows),
		zap.Float64("accuracy", m.Accuracy),
		zap.Float64("precision", m.Precision),
		zap.Float64("recall", m.Recall),
		zap.Float64("f1", m.F1),
		zap.Float64("strategy_return", replay.Stats.TotalReturn))

	return &TrainResult{ModelID: artifact.ID, Metrics: m, Report: report}, nil
}

// LoadModel loads the persisted artifact and the feature table it serves
// from. A missing feature CSV is rebuilt from the source.
func (a *App) LoadModel(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	artifact, err := model.Load(ctx, a.artifacts, a.cfg.Model.ArtifactKey)
	if err != nil {
		return err
	}

	table, err := a.files.Features(ctx)
	if errors.Is(err, fs.ErrNotExist) {
		table, _, err = a.PrepareFeatures(ctx)
	}
	if err != nil {
		return err
	}
	return a.swap(artifact, table)
}

func (a *App) swap(artifact *model.Artifact, table *features.Table) error {
	if err := a.predictor.Swap(artifact, table); err != nil {
		return err
	}
	if a.metrics != nil {
		a.metrics.RecordModelReload()
	}
	a.logger.Info("model loaded",
		zap.String("model_id", artifact.ID),
		zap.Int("rows", len(table.Rows)),
		zap.Strings("tickers", table.Tickers()))
	return nil
}

// Predict answers for one instrument and records the outcome
func (a *App) Predict(ticker string) (predictor.Prediction, error) {
	p, err := a.predictor.Predict(ticker)
	if a.metrics != nil {
		if err != nil {
			a.metrics.RecordPredictionError(errorCode(err))
		} else {
			a.metrics.RecordPrediction(p.Ticker, string(p.Direction))
		}
	}
	return p, err
}

// Importances returns global importances for "" and instrument-scaled
// importances otherwise
func (a *App) Importances(ticker string) ([]model.FeatureImportance, error) {
	return a.predictor.Importances(ticker)
}

// FeatureNames returns the loaded model's feature order, or nil
func (a *App) FeatureNames() []string {
	art, ok := a.predictor.Artifact()
	if !ok {
		return nil
	}
	return art.FeatureNames
}

// Ready reports whether a model is loaded
func (a *App) Ready() bool {
	return a.predictor.Loaded()
}

// CollectPrices downloads the study window for every instrument and stores it
func (a *App) CollectPrices(ctx context.Context) (int, error) {
	pc, ok := a.collectors.Prices(CollectorYahoo)
	if !ok {
		return 0, core.WrapError(core.ErrConfigMissing, fmt.Errorf("collector %s not registered", CollectorYahoo))
	}
	start, end, err := a.cfg.Data.Window()
	if err != nil {
		return 0, err
	}

	var all []core.PriceObservation
	for _, ticker := range a.tickers() {
		bars, err := pc.FetchHistory(ctx, ticker, start, end)
		if err != nil {
			return 0, fmt.Errorf("collecting %s: %w", ticker, err)
		}
		all = append(all, bars...)
	}

	if err := a.files.WritePrices(ctx, all); err != nil {
		return 0, err
	}
	if a.store != nil {
		if _, err := a.store.UpsertPrices(ctx, all); err != nil {
			return 0, err
		}
	}
	return len(all), nil
}

// CollectUnemployment downloads the annual series and writes it aligned
// to the daily study grid
func (a *App) CollectUnemployment(ctx context.Context) (int, error) {
	start, end, err := a.cfg.Data.Window()
	if err != nil {
		return 0, err
	}
	series, err := a.unemployment(ctx, start, end)
	if err != nil {
		return 0, err
	}
	frame, err := calendar.Align(start, end, series)
	if err != nil {
		return 0, err
	}

	daily := calendar.Series{Name: series.Name, Points: make([]calendar.Point, len(frame.Dates))}
	values := frame.Columns[series.Name]
	for i, d := range frame.Dates {
		daily.Points[i] = calendar.Point{Date: d, Value: values[i]}
	}
	if err := a.files.WriteUnemployment(ctx, daily); err != nil {
		return 0, err
	}
	return len(daily.Points), nil
}

// CollectSentiment scores the headline pool for every instrument on each
// of its trading dates and stores the non-empty results
func (a *App) CollectSentiment(ctx context.Context) (int, error) {
	headlines, err := a.files.Headlines(ctx)
	if err != nil {
		return 0, err
	}
	prices, err := a.source().Prices(ctx)
	if err != nil {
		return 0, err
	}

	dates := make(map[string][]time.Time)
	for _, p := range prices {
		t := core.NormalizeTicker(p.Ticker)
		dates[t] = append(dates[t], core.Day(p.Date))
	}

	agg := sentiment.NewAggregator(headlines, a.universe, sentiment.NewVader(), a.cfg.Sentiment.Aggregator())
	var out []core.SentimentObservation
	for _, ticker := range a.tickers() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		obs := agg.Collect(ticker, dates[ticker])
		a.logger.Info("sentiment collected",
			zap.String("ticker", ticker),
			zap.Int("dates", len(dates[ticker])),
			zap.Int("scored", len(obs)))
		out = append(out, obs...)
	}

	if err := a.files.WriteSentiment(ctx, out); err != nil {
		return 0, err
	}
	if a.store != nil {
		if err := a.store.UpsertSentiment(ctx, out); err != nil {
			return 0, err
		}
	}
	return len(out), nil
}

// Migrate creates the relational schema and seeds the event table from
// the events CSV when present
func (a *App) Migrate(ctx context.Context) error {
	if a.store == nil {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("database.dsn is required to migrate"))
	}
	if err := a.store.EnsureSchema(ctx); err != nil {
		return err
	}
	evs, err := a.files.Events(ctx)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		return nil
	}
	return a.store.InsertEvents(ctx, evs)
}

// Status reports table sizes and per-instrument coverage
func (a *App) Status(ctx context.Context) (*postgres.Status, error) {
	if a.store != nil {
		return a.store.Stats(ctx)
	}

	src := a.files
	prices, err := src.Prices(ctx)
	if err != nil {
		return nil, err
	}
	sent, err := src.Sentiment(ctx)
	if err != nil {
		return nil, err
	}
	macroObs, err := src.Macro(ctx)
	if err != nil {
		return nil, err
	}
	evs, err := src.Events(ctx)
	if err != nil {
		return nil, err
	}
	return fileStatus(prices, sent, len(macroObs), len(evs)), nil
}

func fileStatus(prices []core.PriceObservation, sent []core.SentimentObservation, macroRows, eventRows int) *postgres.Status {
	st := &postgres.Status{Counts: map[string]int{
		"stocks":           len(prices),
		"sentiment_data":   len(sent),
		"macro_indicators": macroRows,
		"market_events":    eventRows,
	}}

	coverage := make(map[string]*postgres.TickerCoverage)
	for _, p := range prices {
		t := core.NormalizeTicker(p.Ticker)
		c, ok := coverage[t]
		if !ok {
			c = &postgres.TickerCoverage{Ticker: t, First: p.Date, Last: p.Date}
			coverage[t] = c
		}
		c.Rows++
		if p.Date.Before(c.First) {
			c.First = p.Date
		}
		if p.Date.After(c.Last) {
			c.Last = p.Date
		}
	}
	for _, s := range sent {
		if c, ok := coverage[core.NormalizeTicker(s.Ticker)]; ok {
			c.SentimentRows++
		}
	}

	for _, c := range coverage {
		st.Tickers = append(st.Tickers, *c)
	}
	sort.Slice(st.Tickers, func(i, j int) bool { return st.Tickers[i].Ticker < st.Tickers[j].Ticker })
	return st
}

func (a *App) tickers() []string {
	out := make([]string, 0, len(a.universe))
	for t := range a.universe {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func errorCode(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return "INTERNAL"
}
