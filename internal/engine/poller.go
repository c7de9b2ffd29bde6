package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errs "github.com/dm/gridmon/internal/errors"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/retriever"
	"github.com/dm/gridmon/internal/sender"
)

// Mode selects how entity snapshots are collected.
type Mode string

const (
	// ModeDirect walks discovered objects one request at a time.
	ModeDirect Mode = "direct"
	// ModeReport runs one bulk report per entity type where the module
	// supports it, and collects directly otherwise.
	ModeReport Mode = "report"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeReport:
		return Mode(s), nil
	case "":
		return ModeDirect, nil
	default:
		return "", errs.NewWithContext(errs.ErrCodeInvalidRequest, "unknown collection mode",
			map[string]any{"mode": s})
	}
}

// Options configure a Poller.
type Options struct {
	Mode Mode
	// Parallelism is the number of entity types polled at once; values
	// below 2 poll sequentially.
	Parallelism int
	// Entities limits polling to the named types; empty polls every type.
	Entities []model.EntityType
}

// Poller runs one collection cycle across the selected entity types.
type Poller struct {
	sender     sender.RequestSender
	session    *model.Session
	retrievers []retriever.Retriever
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewPoller builds a poller over the modules of reg selected by opts.
func NewPoller(s sender.RequestSender, sess *model.Session, reg *retriever.Registry, opts Options, logger *slog.Logger) (*Poller, error) {
	if s == nil || sess == nil || reg == nil {
		return nil, errs.New(errs.ErrCodeInvalidRequest, "sender, session and registry are required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	rs, err := reg.Select(opts.Entities)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		sender:     s,
		session:    sess,
		retrievers: rs,
		opts:       opts,
		logger:     logger.With("session", sess.ID()),
		now:        time.Now,
	}, nil
}

// Session returns the session shared by every cycle.
func (p *Poller) Session() *model.Session { return p.session }

// Poll refreshes the topology and collects every selected entity type once.
// A failure of one type is logged and recorded in Cycle.Errors; it never
// affects the other types.
func (p *Poller) Poll(ctx context.Context) *model.Cycle {
	if err := DiscoverTopology(ctx, p.sender, p.session); err != nil {
		topologyErrors.Inc()
		p.logger.Warn("topology refresh failed", "error", err)
	}

	cycle := &model.Cycle{
		Snapshots: make(map[model.EntityType]*model.Snapshot, len(p.retrievers)),
		Errors:    make(map[model.EntityType]error),
	}
	var mu sync.Mutex

	var g errgroup.Group
	limit := p.opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, r := range p.retrievers {
		g.Go(func() error {
			snap, err := p.collect(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				cycle.Errors[r.Entity()] = err
				return nil
			}
			cycle.Snapshots[r.Entity()] = snap
			return nil
		})
	}
	_ = g.Wait()

	cycle.FetchedAt = p.now()
	return cycle
}

// collect runs exactly one strategy for r.
func (p *Poller) collect(ctx context.Context, r retriever.Retriever) (*model.Snapshot, error) {
	entity := string(r.Entity())
	strategy := ModeDirect
	if p.opts.Mode == ModeReport && r.SupportsReport() {
		strategy = ModeReport
	}

	start := time.Now()
	snap, err := p.gather(ctx, r, strategy)
	elapsed := time.Since(start)
	pollDuration.WithLabelValues(entity).Observe(elapsed.Seconds())

	if err != nil {
		pollTotal.WithLabelValues(entity, string(strategy), statusError).Inc()
		p.logger.Warn("entity poll failed",
			"entity", entity,
			"strategy", strategy,
			"code", errs.CodeOf(err),
			"error", err)
		return nil, fmt.Errorf("%s: %w", entity, err)
	}

	pollTotal.WithLabelValues(entity, string(strategy), statusSuccess).Inc()
	pollRecords.WithLabelValues(entity).Set(float64(snap.Len()))
	p.logger.Debug("entity polled",
		"entity", entity,
		"strategy", strategy,
		"records", snap.Len(),
		"duration", elapsed)
	return snap, nil
}

// gather runs strategy for r. A panic inside a module is returned as an
// internal error so the other entity types of the cycle still complete.
func (p *Poller) gather(ctx context.Context, r retriever.Retriever, strategy Mode) (snap *model.Snapshot, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			snap = nil
			err = errs.New(errs.ErrCodeInternal, fmt.Sprintf("panic: %v", rec))
		}
	}()

	if strategy == ModeReport {
		rows, err := p.sender.RunReport(ctx, r.Report())
		if err != nil {
			return nil, err
		}
		return r.CollectFromReport(rows, p.session)
	}
	return r.CollectDirect(ctx, p.sender, p.session)
}

// Run polls immediately and then every interval until ctx is done, handing
// each cycle to fn.
func (p *Poller) Run(ctx context.Context, interval time.Duration, fn func(*model.Cycle)) error {
	if interval <= 0 {
		return errs.New(errs.ErrCodeInvalidRequest, "poll interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		fn(p.Poll(ctx))
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
