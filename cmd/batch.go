package main

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interview-prep/internal/model"
)

// runFunc is the callback signature for processing one email.
type runFunc func(ctx context.Context, em model.Email) (*model.RunResult, error)

// batchEntry is one email's line in the batch summary.
type batchEntry struct {
	EmailID       string                `json:"email_id"`
	Subject       string                `json:"subject"`
	Status        model.RecordStatus    `json:"status"`
	Reason        string                `json:"reason,omitempty"`
	ContentHash   string                `json:"content_hash,omitempty"`
	Candidate     string                `json:"candidate,omitempty"`
	Company       string                `json:"company,omitempty"`
	OutputPath    string                `json:"output_path,omitempty"`
	Composition   model.CompositionPath `json:"composition,omitempty"`
	GapsResolved  int                   `json:"gaps_resolved"`
	Confidence    float64               `json:"confidence"`
	Deduplicated  bool                  `json:"deduplicated"`
	SearchCalls   int                   `json:"search_calls"`
	EstimatedCost float64               `json:"estimated_cost_usd"`
	DurationMs    int64                 `json:"duration_ms"`
}

// batchSummary is printed as JSON when a batch finishes.
type batchSummary struct {
	Processed     int          `json:"processed"`
	Ready         int          `json:"ready"`
	Failed        int          `json:"failed"`
	EstimatedCost float64      `json:"estimated_cost_usd"`
	Emails        []batchEntry `json:"emails"`
}

// processBatch runs every email concurrently, at most concurrency at a time.
// One email failing never aborts the others; entries keep input order.
func processBatch(ctx context.Context, emails []model.Email, concurrency int, run runFunc) (*batchSummary, error) {
	summary := &batchSummary{Emails: make([]batchEntry, len(emails))}
	if len(emails) == 0 {
		zap.L().Info("no emails matched")
		return summary, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("emails", len(emails)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, em := range emails {
		g.Go(func() error {
			log := zap.L().With(zap.String("email_id", em.ID))
			entry := batchEntry{EmailID: em.ID, Subject: em.Subject}

			if gctx.Err() != nil {
				entry.Status = model.StatusFailed
				entry.Reason = "cancelled before start"
				summary.Emails[i] = entry
				failed.Add(1)
				return nil
			}

			result, err := run(gctx, em)
			if result != nil {
				fillEntry(&entry, result)
			}
			if err != nil {
				entry.Status = model.StatusFailed
				entry.Reason = err.Error()
				log.Error("email failed", zap.Error(err))
			}
			summary.Emails[i] = entry

			if entry.Status != model.StatusReady {
				failed.Add(1)
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			log.Info("prep guide ready",
				zap.String("output", entry.OutputPath),
				zap.Int("gaps_resolved", entry.GapsResolved),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	summary.Processed = len(emails)
	summary.Ready = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	for _, e := range summary.Emails {
		summary.EstimatedCost += e.EstimatedCost
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Float64("estimated_cost_usd", summary.EstimatedCost),
	)
	return summary, nil
}

func fillEntry(e *batchEntry, r *model.RunResult) {
	e.Status = r.Status
	e.Reason = r.Reason
	e.ContentHash = r.ContentHash
	e.OutputPath = r.OutputPath
	e.GapsResolved = r.GapsResolved
	e.Confidence = r.Confidence
	e.Deduplicated = r.Deduplicated
	e.SearchCalls = r.SearchCalls
	e.EstimatedCost = r.EstimatedCost
	e.DurationMs = r.DurationMs
	if r.Record != nil {
		e.Candidate = r.Record.CandidateName
		e.Company = r.Record.CompanyName
	}
	if r.Document != nil {
		e.Composition = r.Document.Path
	}
	if e.Status == "" {
		e.Status = model.StatusFailed
	}
}
