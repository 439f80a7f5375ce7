package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/AudioList/clover/pkg/tracing"
	"github.com/AudioList/clover/pkg/variants"
)

// VariantEmitter publishes variant resolution events
type VariantEmitter interface {
	EmitVariantFlagsApplied(ctx context.Context, diff variants.Diff) error
}

// VariantProcessor recomputes the best-variant flag across all product
// families. Safe to run on any schedule: the resolver emits a minimal diff,
// so a run over settled data writes nothing.
type VariantProcessor struct {
	catalog    Catalog
	emitter    VariantEmitter
	retryCount int
	logger     ectologger.Logger
}

// NewVariantProcessor creates a new variant processor
func NewVariantProcessor(catalog Catalog, emitter VariantEmitter, retryCount int, logger ectologger.Logger) *VariantProcessor {
	if retryCount < 1 {
		retryCount = 3
	}
	return &VariantProcessor{
		catalog:    catalog,
		emitter:    emitter,
		retryCount: retryCount,
		logger:     logger,
	}
}

// Run resolves winners for every family and applies the flag diff.
func (p *VariantProcessor) Run(ctx context.Context) (variants.Diff, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.VariantProcessor.Run")
	defer span.End()

	families, err := p.catalog.ListFamilyMembers(ctx)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to list family members")
		return variants.Diff{}, err
	}

	diff := variants.ResolveBestVariants(families)
	if diff.Empty() {
		p.logger.WithContext(ctx).Debug("Variant flags already settled")
		return diff, nil
	}

	if err := p.applyWithRetry(ctx, diff); err != nil {
		return diff, err
	}

	if err := p.emitter.EmitVariantFlagsApplied(ctx, diff); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to emit variant flags event")
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"families":        len(families),
		"marked_best":     len(diff.ToMarkBest),
		"marked_not_best": len(diff.ToMarkNotBest),
	}).Info("Variant flags applied")

	return diff, nil
}

func (p *VariantProcessor) applyWithRetry(ctx context.Context, diff variants.Diff) error {
	var err error
	backoff := newFibonacciBackoff(250 * time.Millisecond)
	for attempt := 1; attempt <= p.retryCount; attempt++ {
		if err = p.catalog.ApplyVariantFlags(ctx, diff.ToMarkBest, diff.ToMarkNotBest); err == nil {
			return nil
		}

		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"attempt": attempt,
		}).Warn("Failed to apply variant flags, backing off")

		if attempt == p.retryCount {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff()):
		}
	}
	return err
}
