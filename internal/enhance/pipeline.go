// Package enhance runs the AI enhancement pipeline: it asks the model for a
// structured proposal per resource, persists the enhancement columns, and
// auto-promotes high-confidence results backed by trusted sources.
package enhance

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/harvestmap/trust-cli/internal/apperr"
	"github.com/harvestmap/trust-cli/internal/model"
	"github.com/harvestmap/trust-cli/internal/policy"
	"github.com/harvestmap/trust-cli/internal/resilience"
	"github.com/harvestmap/trust-cli/internal/store"
	"github.com/harvestmap/trust-cli/pkg/anthropic"
)

// maxBulkEnhance caps the admin bulk-enhance request size.
const maxBulkEnhance = 20

// Config tunes the pipeline.
type Config struct {
	Model          string
	MaxTokens      int64
	BatchSize      int
	Concurrency    int
	RatePerSec     float64
	Timeout        time.Duration
	TrustedDomains []string
}

// Pipeline coordinates the model client and the store.
type Pipeline struct {
	client  anthropic.Client
	store   store.Store
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewPipeline(client anthropic.Client, st store.Store, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Pipeline{
		client:  client,
		store:   st,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     zap.L().Named("enhance"),
	}
}

// BatchResult summarizes one autonomous pipeline run.
type BatchResult struct {
	Processed int                       `json:"processed"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Promoted  int                       `json:"promoted"`
	Items     []model.EnhanceItemResult `json:"items"`
}

// RunBatch enhances up to batchSize unverified resources that have no
// meaningful confidence yet. Items run concurrently under the rate limit;
// one item's failure never aborts the batch, and failed items are left for a
// later run rather than retried in-run.
func (p *Pipeline) RunBatch(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	candidates, err := p.store.ListEnhancementCandidates(ctx, batchSize)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if len(candidates) == 0 {
		p.log.Info("no enhancement candidates")
		return &BatchResult{}, nil
	}

	results := make([]model.EnhanceItemResult, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, r := range candidates {
		g.Go(func() error {
			item := p.enhanceOne(gctx, r, false)
			mu.Lock()
			results[i] = item
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &BatchResult{Processed: len(results), Items: results}
	for _, item := range results {
		switch item.Status {
		case model.EnhanceItemSuccess:
			out.Succeeded++
			if item.Promoted {
				out.Promoted++
			}
		default:
			out.Failed++
		}
	}

	p.log.Info("enhancement batch complete",
		zap.Int("processed", out.Processed),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed),
		zap.Int("promoted", out.Promoted))
	return out, nil
}

// enhanceOne proposes and persists for a single resource. applyFields is set
// only on the admin-trusted bulk path.
func (p *Pipeline) enhanceOne(ctx context.Context, r model.Resource, applyFields bool) model.EnhanceItemResult {
	proposal, err := p.propose(ctx, r)
	if err != nil {
		p.log.Warn("enhancement failed",
			zap.String("resource_id", r.ID), zap.Error(err))
		return model.EnhanceItemResult{
			ID:        r.ID,
			Status:    model.EnhanceItemError,
			Error:     err.Error(),
			Transient: resilience.IsTransient(err),
		}
	}

	update := model.ProposalUpdate{
		Confidence: proposal.Confidence,
		Summary:    proposal.Summary,
		SourceURL:  proposal.PrimarySource(),
		Hours:      proposal.Hours,
		Promote: policy.ShouldAutoPromote(proposal.Confidence,
			policy.IsTrustedSource(proposal.PrimarySource(), p.cfg.TrustedDomains)),
	}
	if applyFields {
		update.Fields = &proposal.Fields
	}

	promoted, err := p.store.ApplyProposal(ctx, r.ID, update)
	if err != nil {
		p.log.Warn("failed to persist proposal",
			zap.String("resource_id", r.ID), zap.Error(err))
		return model.EnhanceItemResult{
			ID:     r.ID,
			Status: model.EnhanceItemError,
			Error:  apperr.UserMessage(apperr.Classify(err)),
		}
	}

	confidence := proposal.Confidence
	return model.EnhanceItemResult{
		ID:         r.ID,
		Status:     model.EnhanceItemSuccess,
		Confidence: &confidence,
		Promoted:   promoted,
	}
}

// propose makes one model call and parses the structured response. The call
// is bounded by the configured timeout so a stalled upstream cannot hold the
// caller's context open.
func (p *Pipeline) propose(ctx context.Context, r model.Resource) (*model.Proposal, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := p.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: buildPrompt(r)}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(p.cfg.Model, "enhance")

	return parseProposal(resp.Text())
}

// BulkEnhance is the admin-trusted path: it enhances the named resources,
// applies the full proposed field set, retries transient model failures, and
// writes one audit entry for the batch.
func (p *Pipeline) BulkEnhance(ctx context.Context, adminID string, ids []string) (*model.BulkEnhanceResult, error) {
	if adminID == "" {
		return nil, apperr.Unauthorized("a verified admin is required")
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("resource ids are required")
	}
	if len(ids) > maxBulkEnhance {
		return nil, apperr.Validation("at most %d resources per bulk enhance, got %d", maxBulkEnhance, len(ids))
	}

	resources, err := p.store.GetResources(ctx, ids)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	byID := make(map[string]model.Resource, len(resources))
	for _, r := range resources {
		byID[r.ID] = r
	}

	result := &model.BulkEnhanceResult{Errors: map[string]string{}}
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "bulk_enhance")

	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			result.Failed++
			result.Errors[id] = "resource not found"
			continue
		}

		item, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (model.EnhanceItemResult, error) {
			item := p.enhanceOne(ctx, r, true)
			if item.Status == model.EnhanceItemError && item.Transient {
				return item, resilience.NewTransientError(
					eris.New(item.Error), 0)
			}
			return item, nil
		})
		if err != nil || item.Status == model.EnhanceItemError {
			result.Failed++
			if item.Error != "" {
				result.Errors[id] = item.Error
			} else if err != nil {
				result.Errors[id] = err.Error()
			}
			continue
		}
		result.Enhanced++
	}
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	err = p.store.AppendAudit(ctx, model.AuditLogEntry{
		AdminID: adminID,
		Action:  "bulk_enhance",
		Changes: map[string]any{
			"requested": len(ids),
			"enhanced":  result.Enhanced,
			"failed":    result.Failed,
		},
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return result, nil
}
