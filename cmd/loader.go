package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/input"
	"github.com/mgijax/srcload/internal/resilience"
	"github.com/mgijax/srcload/internal/source"
	"github.com/mgijax/srcload/internal/store"
)

// recordProcessor is the part of *source.Processor the loader drives.
type recordProcessor interface {
	Process(ctx context.Context, rec source.Record) (*source.Result, error)
}

// flushObserver receives flush timings and queue sizes. *metrics.Recorder
// implements it.
type flushObserver interface {
	RecordFlush(res store.FlushResult, seconds float64, err error)
	SetPending(n int)
}

// loadSummary counts what happened to the input.
type loadSummary struct {
	Read      int
	Processed int
	Skipped   int
	Flushed   store.FlushResult
}

// loader feeds input records through the processor and flushes the write
// batch whenever batchSize writes are queued.
type loader struct {
	proc      recordProcessor
	writer    store.Writer
	batchSize int
	retry     resilience.RetryConfig
	observer  flushObserver // optional

	summary loadSummary
}

// run consumes items until the channel closes or a fatal error occurs.
// Queued writes are flushed before a fatal error is returned.
func (l *loader) run(ctx context.Context, items <-chan input.Item) (loadSummary, error) {
	log := zap.L().With(zap.String("component", "loader"))

	for item := range items {
		l.summary.Read++
		if item.Err != nil {
			l.summary.Skipped++
			log.Warn("skipping unreadable record", zap.Int("line", item.Line), zap.Error(item.Err))
			continue
		}

		res, err := l.proc.Process(ctx, item.Record)
		if res != nil && res.New {
			if qerr := l.writer.QueueAssociation(ctx, res.SequenceKey, res.Source); qerr != nil {
				return l.summary, l.abort(ctx, qerr)
			}
		}
		if err != nil {
			if skippable(err) {
				l.summary.Skipped++
				log.Warn("skipping record",
					zap.Int("line", item.Line),
					zap.Int64("sequence_key", item.Record.SequenceKey),
					zap.String("kind", source.KindOf(err).String()),
					zap.Error(err),
				)
				continue
			}
			return l.summary, l.abort(ctx, eris.Wrapf(err, "load: sequence %d", item.Record.SequenceKey))
		}
		l.summary.Processed++

		if l.writer.Pending() >= l.batchSize {
			if err := l.flush(ctx); err != nil {
				return l.summary, err
			}
		}
	}

	if err := l.flush(ctx); err != nil {
		return l.summary, err
	}
	return l.summary, nil
}

// skippable reports per-record failures the run continues past.
func skippable(err error) bool {
	return source.IsInputError(err) || source.KindOf(err) == source.KindCloneLimit
}

// abort flushes what is queued and returns cause. A failed flush is logged;
// cause is still the error reported.
func (l *loader) abort(ctx context.Context, cause error) error {
	if err := l.flush(ctx); err != nil {
		zap.L().Error("flush after fatal error failed",
			zap.String("component", "loader"),
			zap.Error(err),
		)
	}
	return cause
}

func (l *loader) flush(ctx context.Context) error {
	if l.observer != nil {
		l.observer.SetPending(l.writer.Pending())
	}
	if l.writer.Pending() == 0 {
		return nil
	}

	start := time.Now()
	res, err := resilience.DoVal(ctx, l.retry, l.writer.Flush)
	if l.observer != nil {
		l.observer.RecordFlush(res, time.Since(start).Seconds(), err)
		l.observer.SetPending(l.writer.Pending())
	}
	if err != nil {
		return eris.Wrap(err, "load: flush")
	}

	l.summary.Flushed.Sources += res.Sources
	l.summary.Flushed.Associations += res.Associations
	l.summary.Flushed.Updates += res.Updates
	return nil
}
