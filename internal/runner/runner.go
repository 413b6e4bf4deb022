// Package runner orchestrates a full ingestion run: discovery, fetch,
// classification, extraction, normalization, and emission, with failures
// routed to quarantine instead of aborting the run.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/arremate/ingestor/internal/metrics"
	"github.com/arremate/ingestor/internal/pipeline"
)

// runCompletedTopic is the event name attached to run reports.
const runCompletedTopic = "run.completed"

// ExtractorRegistry resolves the extractor for a structural family.
type ExtractorRegistry interface {
	For(family pipeline.Family) (pipeline.Extractor, bool)
}

// SourceRun pairs one configured source with its discoverer.
type SourceRun struct {
	Name       string
	Discoverer pipeline.Discoverer
}

// Config tunes run-wide behavior.
type Config struct {
	Mode pipeline.RunMode
	// DocumentBudget caps fetched documents across all sources. Zero means
	// unlimited.
	DocumentBudget int
	ArchivePrefix  string
}

// Runner drives one ingestion run across all configured sources. Sources are
// processed concurrently; locations within one source stay sequential so the
// per-source rate policy holds.
type Runner struct {
	sources    []SourceRun
	fetcher    pipeline.Fetcher
	classifier pipeline.Classifier
	extractors ExtractorRegistry
	normalizer pipeline.Normalizer
	emitter    pipeline.Emitter
	quarantine pipeline.QuarantineSink
	index      pipeline.ProcessedIndex
	archive    pipeline.ArchiveStore
	publisher  pipeline.Publisher
	idGen      pipeline.IDGenerator
	clock      pipeline.Clock
	logger     *zap.Logger
	cfg        Config

	mu     sync.Mutex
	budget int
	report pipeline.RunReport
}

// New constructs a Runner.
func New(
	sources []SourceRun,
	fetcher pipeline.Fetcher,
	classifier pipeline.Classifier,
	extractors ExtractorRegistry,
	normalizer pipeline.Normalizer,
	emitter pipeline.Emitter,
	quarantine pipeline.QuarantineSink,
	index pipeline.ProcessedIndex,
	archive pipeline.ArchiveStore,
	publisher pipeline.Publisher,
	idGen pipeline.IDGenerator,
	clock pipeline.Clock,
	logger *zap.Logger,
	cfg Config,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sources:    sources,
		fetcher:    fetcher,
		classifier: classifier,
		extractors: extractors,
		normalizer: normalizer,
		emitter:    emitter,
		quarantine: quarantine,
		index:      index,
		archive:    archive,
		publisher:  publisher,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run executes the pipeline and returns the run report. Individual document
// failures land in quarantine; Run itself errors only on setup problems or
// context cancellation.
func (r *Runner) Run(ctx context.Context) (pipeline.RunReport, error) {
	runID, err := r.idGen.NewID()
	if err != nil {
		return pipeline.RunReport{}, fmt.Errorf("generate run id: %w", err)
	}

	r.mu.Lock()
	r.budget = r.cfg.DocumentBudget
	r.report = pipeline.RunReport{
		RunID:            runID,
		Mode:             r.cfg.Mode,
		StartedAt:        r.clock.Now(),
		QuarantineByCode: make(map[pipeline.ErrorCode]int),
	}
	r.mu.Unlock()

	r.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("mode", string(r.cfg.Mode)),
		zap.Int("sources", len(r.sources)),
	)

	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src SourceRun) {
			defer wg.Done()
			r.runSource(ctx, src)
		}(src)
	}
	wg.Wait()

	r.mu.Lock()
	r.report.FinishedAt = r.clock.Now()
	report := r.report
	r.mu.Unlock()

	r.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration()),
		zap.Int("discovered", report.Discovered),
		zap.Int("fetched", report.Fetched),
		zap.Int("valid", report.Valid),
		zap.Int("not_sellable", report.NotSellable),
		zap.Int("drafts", report.Drafts),
		zap.Int("rejected", report.Rejected),
	)

	if r.publisher != nil {
		if _, perr := r.publisher.Publish(ctx, runCompletedTopic, report); perr != nil {
			r.logger.Warn("publish run report failed", zap.Error(perr))
		}
	}
	if ctx.Err() != nil {
		return report, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return report, nil
}

func (r *Runner) runSource(ctx context.Context, src SourceRun) {
	log := r.logger.With(zap.String("source", src.Name))

	locations, err := src.Discoverer.Discover(ctx, r.cfg.Mode)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoCandidates) {
			log.Info("no candidate documents discovered")
			return
		}
		log.Warn("discovery failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.report.Discovered += len(locations)
	r.mu.Unlock()
	log.Info("discovery complete", zap.Int("candidates", len(locations)))

	for _, loc := range locations {
		if ctx.Err() != nil {
			return
		}
		if !r.takeBudget() {
			log.Info("document budget exhausted", zap.String("stopped_at", loc.URL))
			return
		}
		r.processLocation(ctx, log, loc)
	}
}

// takeBudget consumes one unit of the shared document budget. A zero budget
// never runs out.
func (r *Runner) takeBudget() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.DocumentBudget == 0 {
		return true
	}
	if r.budget <= 0 {
		return false
	}
	r.budget--
	return true
}

func (r *Runner) processLocation(ctx context.Context, log *zap.Logger, loc pipeline.Location) {
	fetchStart := r.clock.Now()
	doc, err := r.fetcher.Fetch(ctx, loc)
	metrics.ObserveStageDuration(string(pipeline.StageFetch), r.clock.Now().Sub(fetchStart))
	if err != nil {
		r.recordFetchError(log, loc, err)
		return
	}

	r.mu.Lock()
	r.report.Fetched++
	r.mu.Unlock()

	if prev, ok := r.index.Lookup(doc.ContentHash); ok {
		log.Debug("document unchanged, skipping",
			zap.String("url", doc.URL),
			zap.String("hash", doc.ContentHash),
			zap.String("previous_outcome", string(prev.Outcome)),
		)
		metrics.ObserveDocument(doc.Source, string(pipeline.OutcomeSkipped))
		return
	}

	r.archiveDocument(ctx, log, doc)

	family := r.classifier.Classify(doc)
	if code, terminal := family.QuarantineCode(); terminal {
		r.quarantineDocument(ctx, log, doc, pipeline.StageClassification, code,
			fmt.Sprintf("classified as %s", family))
		r.recordOutcome(log, doc, pipeline.OutcomeQuarantined, 0)
		return
	}

	extractor, ok := r.extractors.For(family)
	if !ok {
		r.quarantineDocument(ctx, log, doc, pipeline.StageClassification,
			pipeline.CodeUnsupportedType,
			fmt.Sprintf("no extractor registered for family %s", family))
		r.recordOutcome(log, doc, pipeline.OutcomeQuarantined, 0)
		return
	}

	extractStart := r.clock.Now()
	candidates, extractErrs := extractor.Extract(doc)
	metrics.ObserveStageDuration(string(pipeline.StageExtraction), r.clock.Now().Sub(extractStart))

	for _, xerr := range extractErrs {
		r.quarantineExtraction(ctx, log, doc, extractor.Version(), xerr)
	}

	emitted := 0
	for _, cand := range candidates {
		backfillCandidate(&cand, doc, loc)
		if r.normalizeAndEmit(ctx, log, doc, cand) {
			emitted++
		}
	}

	if len(candidates) == 0 {
		r.recordOutcome(log, doc, pipeline.OutcomeQuarantined, 0)
		return
	}
	r.mu.Lock()
	r.report.Extracted += len(candidates)
	r.mu.Unlock()
	r.recordOutcome(log, doc, pipeline.OutcomeExtracted, emitted)
}

// backfillCandidate fills document-level context an extractor could not see.
// The publication date falls back to when discovery first saw the location.
func backfillCandidate(cand *pipeline.CandidateRecord, doc pipeline.SourceDocument, loc pipeline.Location) {
	if cand.SourceURL == "" {
		cand.SourceURL = doc.URL
	}
	if cand.PublishedDate == "" && !loc.SeenAt.IsZero() {
		cand.PublishedDate = loc.SeenAt.Format("02-01-2006")
	}
	if cand.Category == "" {
		cand.Category = loc.Category
	}
	if cand.Provenance.SourceURL == "" {
		cand.Provenance.SourceURL = doc.URL
	}
}

func (r *Runner) normalizeAndEmit(
	ctx context.Context,
	log *zap.Logger,
	doc pipeline.SourceDocument,
	cand pipeline.CandidateRecord,
) bool {
	normStart := r.clock.Now()
	rec, err := r.normalizer.Normalize(cand)
	metrics.ObserveStageDuration(string(pipeline.StageValidation), r.clock.Now().Sub(normStart))
	if err != nil {
		var verr pipeline.ValidationError
		code := pipeline.CodeMandatoryFieldMissing
		detail := err.Error()
		if errors.As(err, &verr) {
			code = verr.Code
			detail = verr.Detail
		}
		r.quarantineCandidate(ctx, log, cand, code, detail)
		return false
	}

	r.mu.Lock()
	switch rec.Status {
	case pipeline.StatusValid:
		r.report.Valid++
	case pipeline.StatusNotSellable:
		r.report.NotSellable++
	case pipeline.StatusDraft:
		r.report.Drafts++
	case pipeline.StatusRejected:
		r.report.Rejected++
	}
	r.mu.Unlock()
	metrics.ObserveRecord(string(rec.Status))

	if err := r.emitter.Emit(ctx, rec); err != nil {
		log.Error("emit failed",
			zap.String("id_interno", rec.InternalID),
			zap.Error(err),
		)
		payload, _ := json.Marshal(rec)
		r.addQuarantine(ctx, log, pipeline.QuarantineEntry{
			Stage:           pipeline.StagePersistence,
			Code:            pipeline.CodePersistFailed,
			Detail:          err.Error(),
			Payload:         payload,
			ProducerVersion: r.normalizer.Version(),
		})
		return false
	}
	log.Debug("record emitted",
		zap.String("id_interno", rec.InternalID),
		zap.String("status", string(rec.Status)),
		zap.String("url", doc.URL),
	)
	return true
}

func (r *Runner) recordFetchError(log *zap.Logger, loc pipeline.Location, err error) {
	switch {
	case errors.Is(err, pipeline.ErrTombstoned):
		r.mu.Lock()
		r.report.Tombstoned++
		r.mu.Unlock()
		log.Info("location tombstoned", zap.String("url", loc.URL))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("fetch canceled", zap.String("url", loc.URL))
	default:
		r.mu.Lock()
		r.report.FetchFailures++
		r.mu.Unlock()
		log.Warn("fetch failed, will retry next run",
			zap.String("url", loc.URL),
			zap.Error(err),
		)
	}
	metrics.ObserveDocument(loc.Source, "fetch_failed")
}

func (r *Runner) archiveDocument(ctx context.Context, log *zap.Logger, doc pipeline.SourceDocument) {
	if r.archive == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/%s", r.cfg.ArchivePrefix, doc.Source, doc.ContentHash)
	uri, err := r.archive.PutObject(ctx, path, doc.ContentType, doc.Body)
	if err != nil {
		log.Warn("archive write failed",
			zap.String("url", doc.URL),
			zap.Error(err),
		)
		return
	}
	log.Debug("document archived", zap.String("uri", uri))
}

func (r *Runner) recordOutcome(log *zap.Logger, doc pipeline.SourceDocument, outcome pipeline.Outcome, records int) {
	entry := pipeline.ProcessedFile{
		ContentHash: doc.ContentHash,
		URL:         doc.URL,
		Outcome:     outcome,
		Records:     records,
		ProcessedAt: r.clock.Now(),
	}
	if err := r.index.Record(entry); err != nil {
		log.Warn("processed index write failed",
			zap.String("url", doc.URL),
			zap.Error(err),
		)
	}
	metrics.ObserveDocument(doc.Source, string(outcome))
}

func (r *Runner) quarantineDocument(
	ctx context.Context,
	log *zap.Logger,
	doc pipeline.SourceDocument,
	stage pipeline.Stage,
	code pipeline.ErrorCode,
	detail string,
) {
	payload, _ := json.Marshal(doc)
	r.addQuarantine(ctx, log, pipeline.QuarantineEntry{
		Stage:           stage,
		Code:            code,
		Detail:          detail,
		Payload:         payload,
		ProducerVersion: r.classifier.Version(),
	})
}

func (r *Runner) quarantineExtraction(
	ctx context.Context,
	log *zap.Logger,
	doc pipeline.SourceDocument,
	extractorVersion string,
	xerr pipeline.ExtractionError,
) {
	payload, _ := json.Marshal(struct {
		URL         string `json:"url"`
		ContentHash string `json:"content_hash"`
		Page        int    `json:"page,omitempty"`
		Row         int    `json:"row,omitempty"`
	}{doc.URL, doc.ContentHash, xerr.Page, xerr.Row})
	r.addQuarantine(ctx, log, pipeline.QuarantineEntry{
		Stage:           pipeline.StageExtraction,
		Code:            xerr.Code,
		Detail:          xerr.Detail,
		Payload:         payload,
		ProducerVersion: extractorVersion,
	})
}

func (r *Runner) quarantineCandidate(
	ctx context.Context,
	log *zap.Logger,
	cand pipeline.CandidateRecord,
	code pipeline.ErrorCode,
	detail string,
) {
	payload, _ := json.Marshal(cand)
	r.addQuarantine(ctx, log, pipeline.QuarantineEntry{
		Stage:           pipeline.StageValidation,
		Code:            code,
		Detail:          detail,
		Payload:         payload,
		ProducerVersion: r.normalizer.Version(),
	})
}

func (r *Runner) addQuarantine(ctx context.Context, log *zap.Logger, entry pipeline.QuarantineEntry) {
	id, err := r.idGen.NewID()
	if err != nil {
		log.Error("generate quarantine id failed", zap.Error(err))
		return
	}
	entry.ID = id
	entry.CreatedAt = r.clock.Now()
	entry.Resolution = pipeline.ResolutionPending

	r.mu.Lock()
	entry.RunID = r.report.RunID
	r.report.QuarantineByCode[entry.Code]++
	r.mu.Unlock()

	if err := r.quarantine.Quarantine(ctx, entry); err != nil {
		log.Error("quarantine write failed",
			zap.String("code", string(entry.Code)),
			zap.Error(err),
		)
	}
}

// Snapshot returns the live run counters. Safe to call while the run is in
// flight; the status endpoint polls it.
func (r *Runner) Snapshot() pipeline.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := r.report
	report.QuarantineByCode = make(map[pipeline.ErrorCode]int, len(r.report.QuarantineByCode))
	for code, n := range r.report.QuarantineByCode {
		report.QuarantineByCode[code] = n
	}
	return report
}
