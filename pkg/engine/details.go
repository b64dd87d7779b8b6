package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jade-labs/atomgraph/pkg/access"
	"github.com/jade-labs/atomgraph/pkg/common"
	"github.com/jade-labs/atomgraph/pkg/evidence"

	"golang.org/x/sync/errgroup"
)

// EfficacyDetail is an indicator with its timeframe converted to weeks.
// Weeks is nil when the timeframe could not be read.
type EfficacyDetail struct {
	common.EfficacyIndicator
	Weeks *float64 `json:"weeks,omitempty"`
}

// AtomDetails is an atom with everything attached to it.
type AtomDetails struct {
	Atom       *common.Atom                 `json:"atom"`
	Threshold  access.ThresholdInfo         `json:"threshold"`
	Evidence   evidence.Summary             `json:"evidence"`
	Claims     []common.EvidenceClaim       `json:"claims"`
	Efficacy   []EfficacyDetail             `json:"efficacy"`
	Goldilocks []common.GoldilocksParameter `json:"goldilocks"`
}

func (e *Engine) viewableAtom(ctx context.Context, atomID string, level common.AccessLevel) (*common.Atom, error) {
	if !level.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidAccessLevel, string(level))
	}
	atom, err := e.store.GetAtom(ctx, atomID)
	if err != nil {
		return nil, upstream(ctx, "get atom", err)
	}
	if !access.CanView(level, atom) {
		return nil, fmt.Errorf("%w: atom %s requires a higher access level", common.ErrAccessDenied, atomID)
	}
	return atom, nil
}

// AtomDetails loads the atom together with its evidence summary,
// efficacy indicators and Goldilocks parameters.
func (e *Engine) AtomDetails(ctx context.Context, atomID string, level common.AccessLevel) (details *AtomDetails, err error) {
	defer observe("atom_details", time.Now(), &err)

	atom, err := e.viewableAtom(ctx, atomID, level)
	if err != nil {
		return nil, err
	}
	info, err := access.Info(atom.EffectiveThreshold())
	if err != nil {
		return nil, err
	}

	var (
		claims     []common.EvidenceClaim
		indicators []common.EfficacyIndicator
		params     []common.GoldilocksParameter
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.parallel)
	eg.Go(func() error {
		var err error
		claims, err = e.store.ListEvidence(ectx, atomID)
		return err
	})
	eg.Go(func() error {
		var err error
		indicators, err = e.store.ListEfficacy(ectx, atomID)
		return err
	})
	eg.Go(func() error {
		var err error
		params, err = e.store.ListGoldilocks(ectx, atomID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, upstream(ctx, "load atom details", err)
	}

	summary := evidence.SummarizeClaims(claims)
	summary.AtomID = atomID

	efficacy := make([]EfficacyDetail, len(indicators))
	for i, ind := range indicators {
		efficacy[i] = EfficacyDetail{EfficacyIndicator: ind}
		if w, ok := evidence.ParseTimeframeWeeks(ind.Timeframe); ok {
			w = math.Round(w*10) / 10
			efficacy[i].Weeks = &w
		}
	}

	return &AtomDetails{
		Atom:       atom,
		Threshold:  info,
		Evidence:   summary,
		Claims:     nonNil(claims),
		Efficacy:   efficacy,
		Goldilocks: nonNil(params),
	}, nil
}

// CheckParameter evaluates value against the atom's Goldilocks parameter
// of that name. Names match case-insensitively; when several parameters
// share a name the first stored one is used.
func (e *Engine) CheckParameter(
	ctx context.Context,
	atomID, parameter string,
	value float64,
	level common.AccessLevel,
) (check *common.ParameterCheck, err error) {
	defer observe("check_parameter", time.Now(), &err)

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: parameter value must be finite", common.ErrInvalidInput)
	}
	if _, err := e.viewableAtom(ctx, atomID, level); err != nil {
		return nil, err
	}
	params, err := e.store.ListGoldilocks(ctx, atomID)
	if err != nil {
		return nil, upstream(ctx, "list goldilocks parameters", err)
	}
	name := strings.TrimSpace(parameter)
	for _, p := range params {
		if strings.EqualFold(p.Parameter, name) {
			c := p.Check(value)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: parameter %q on atom %s", common.ErrNotFound, parameter, atomID)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
