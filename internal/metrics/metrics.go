package metrics

import (
	"time"

	"go.uber.org/zap"
)

type RequestSample struct {
	Path      string
	Method    string
	Status    int
	Latency   time.Duration
	Timestamp time.Time
}

func (s RequestSample) Fields() []zap.Field {
	return []zap.Field{
		zap.String("method", s.Method),
		zap.String("path", s.Path),
		zap.Int("status", s.Status),
		zap.Duration("latency", s.Latency),
	}
}

// RunSample summarises one recompute pass.
type RunSample struct {
	RunID    string
	Rule     string
	Status   string
	Total    int
	Written  int
	Skipped  int
	Batches  int
	Retries  int
	Duration time.Duration
}

func (s RunSample) Fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", s.RunID),
		zap.String("rule", s.Rule),
		zap.String("status", s.Status),
		zap.Int("total", s.Total),
		zap.Int("written", s.Written),
		zap.Int("skipped", s.Skipped),
		zap.Int("batches", s.Batches),
		zap.Int("retries", s.Retries),
		zap.Duration("duration", s.Duration),
	}
}
