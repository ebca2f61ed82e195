// Package sink copies finished run records to optional external stores. The
// filesystem job log stays authoritative; a sink that fails only produces a
// warning.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"warc-ops/internal/config"
	"warc-ops/internal/model"
)

// Sink receives a copy of every finished run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec model.RunRecord) error
	Close() error
}

// Fanout publishes to every sink in order and never fails the caller.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Publish returns the number of sinks that accepted the record.
func (f *Fanout) Publish(ctx context.Context, rec model.RunRecord) int {
	if f == nil {
		return 0
	}
	ok := 0
	for _, s := range f.sinks {
		if err := s.Publish(ctx, rec); err != nil {
			f.logger.Warn("result sink failed", "sink", s.Name(), "job", rec.JobName, "run_id", rec.RunID, "err", err)
			continue
		}
		f.logger.Debug("result sink updated", "sink", s.Name(), "job", rec.JobName)
		ok++
	}
	return ok
}

func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the sinks that have an address configured. A sink that
// cannot be reached at startup is left out with a warning.
func FromConfig(ctx context.Context, cfg config.SinksConfig, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sinks := make([]Sink, 0, 2)
	if cfg.Redis.Addr != "" {
		s, err := NewRedisSink(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis sink disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			logger.Debug("redis sink enabled", "addr", cfg.Redis.Addr, "password", config.MaskSecret(cfg.Redis.Password), "channel", cfg.Redis.Channel)
			sinks = append(sinks, s)
		}
	}
	if cfg.S3.Endpoint != "" && cfg.S3.Bucket != "" {
		s, err := NewS3Sink(cfg.S3)
		if err != nil {
			logger.Warn("s3 sink disabled", "endpoint", cfg.S3.Endpoint, "err", err)
		} else {
			logger.Debug("s3 sink enabled", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket, "access_key", config.MaskSecret(cfg.S3.AccessKey))
			sinks = append(sinks, s)
		}
	}
	return NewFanout(logger, sinks...)
}

func encodeRecord(rec model.RunRecord) ([]byte, error) {
	if !model.IsKnownStatus(rec.Status) {
		return nil, fmt.Errorf("run record %s has no final status (%q)", rec.JobName, rec.Status)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode run record: %w", err)
	}
	return b, nil
}
