package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jade-labs/atomgraph/pkg/access"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/logger"
	"github.com/jade-labs/atomgraph/pkg/metrics"
)

// MaxWhyItWorksLength bounds the why-it-works text in characters.
const MaxWhyItWorksLength = 10000

// SetThreshold moves an atom to another knowledge threshold. The caller
// must be able to see the atom both before and after the change.
func (e *Engine) SetThreshold(
	ctx context.Context,
	atomID string,
	threshold common.KnowledgeThreshold,
	level common.AccessLevel,
) (atom *common.Atom, err error) {
	defer observe("set_threshold", time.Now(), &err)

	if !threshold.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidThreshold, string(threshold))
	}
	if _, err := e.viewableAtom(ctx, atomID, level); err != nil {
		return nil, err
	}
	if !access.HasAccess(level, threshold) {
		return nil, fmt.Errorf("%w: cannot assign %s", common.ErrAccessDenied, threshold)
	}
	return e.update(ctx, atomID, common.AtomPatch{Threshold: &threshold})
}

// SetWhyItWorks replaces the atom's why-it-works text. Blank text is rejected.
func (e *Engine) SetWhyItWorks(
	ctx context.Context,
	atomID, text string,
	level common.AccessLevel,
) (atom *common.Atom, err error) {
	defer observe("set_why_it_works", time.Now(), &err)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: why-it-works text is empty", common.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxWhyItWorksLength {
		return nil, fmt.Errorf("%w: why-it-works text exceeds %d characters", common.ErrInvalidInput, MaxWhyItWorksLength)
	}
	if _, err := e.viewableAtom(ctx, atomID, level); err != nil {
		return nil, err
	}
	return e.update(ctx, atomID, common.AtomPatch{WhyItWorks: &text})
}

func (e *Engine) update(ctx context.Context, atomID string, patch common.AtomPatch) (*common.Atom, error) {
	atom, err := e.store.UpdateAtom(ctx, atomID, patch)
	if err != nil {
		err = upstream(ctx, "update atom", err)
		logger.Error("[Engine] Failed to update atom", "atom_id", atomID, "err", err)
		return nil, err
	}
	e.notifyReindex(ctx, atomID)
	return atom, nil
}

// notifyReindex never fails the write; the index is eventually consistent.
func (e *Engine) notifyReindex(ctx context.Context, atomID string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyReindex(ctx, atomID); err != nil {
		metrics.ReindexEvents.WithLabelValues("publish", "error").Inc()
		logger.Warn("[Engine] Failed to queue reindex", "atom_id", atomID, "err", err)
		return
	}
	metrics.ReindexEvents.WithLabelValues("publish", "ok").Inc()
}
