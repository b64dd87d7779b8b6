package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jade-labs/atomgraph/pkg/common"
)

// Concern is a skin concern a search can be narrowed by.
type Concern string

const (
	ConcernAcne              Concern = "acne"
	ConcernAging             Concern = "aging"
	ConcernDryness           Concern = "dryness"
	ConcernDullness          Concern = "dullness"
	ConcernRedness           Concern = "redness"
	ConcernSensitivity       Concern = "sensitivity"
	ConcernHyperpigmentation Concern = "hyperpigmentation"
	ConcernOiliness          Concern = "oiliness"
	ConcernSunDamage         Concern = "sun-damage"
	ConcernBarrierDamage     Concern = "barrier-damage"
)

// ConcernMinimum is the lowest measured value a dimension needs for an
// atom to count as addressing a concern.
const ConcernMinimum = 0.6

type concernRange struct {
	dim common.TensorDimension
	rng common.TensorRange
}

// Sensitivity is the one concern served by a low value: atoms for
// sensitive skin must not irritate.
var concernRanges = map[Concern]concernRange{
	ConcernAcne:              {common.DimSebumRegulation, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernAging:             {common.DimAntiAgingPotency, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernDryness:           {common.DimHydration, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernDullness:          {common.DimBrightening, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernRedness:           {common.DimAntiInflammatory, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernSensitivity:       {common.DimIrritationPotential, common.TensorRange{Min: 0, Max: 1 - ConcernMinimum}},
	ConcernHyperpigmentation: {common.DimBrightening, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernOiliness:          {common.DimSebumRegulation, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernSunDamage:         {common.DimPhotoprotection, common.TensorRange{Min: ConcernMinimum, Max: 1}},
	ConcernBarrierDamage:     {common.DimBarrierRepair, common.TensorRange{Min: ConcernMinimum, Max: 1}},
}

// Concerns lists the known concerns alphabetically.
func Concerns() []Concern {
	out := make([]Concern, 0, len(concernRanges))
	for c := range concernRanges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseConcern accepts "sun-damage", "sun_damage" and "Sun Damage".
func ParseConcern(s string) (Concern, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "-", " ", "-").Replace(norm)
	c := Concern(norm)
	if _, ok := concernRanges[c]; !ok {
		known := make([]string, 0, len(concernRanges))
		for _, k := range Concerns() {
			known = append(known, string(k))
		}
		return "", fmt.Errorf("%w: unknown concern %q, expected one of %s", common.ErrInvalidInput, s, strings.Join(known, ", "))
	}
	return c, nil
}

// Dimension returns the tensor dimension the concern maps to.
func (c Concern) Dimension() (common.TensorDimension, bool) {
	r, ok := concernRanges[c]
	return r.dim, ok
}

// ConcernRanges expands concerns into tensor ranges and merges them with
// explicit ranges. Ranges on the same dimension are intersected.
func ConcernRanges(concerns []string, explicit map[common.TensorDimension]common.TensorRange) (map[common.TensorDimension]common.TensorRange, error) {
	out := make(map[common.TensorDimension]common.TensorRange, len(concerns)+len(explicit))
	for d, r := range explicit {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: unknown tensor dimension %d", common.ErrInvalidInput, int(d))
		}
		if r.Min > r.Max {
			return nil, fmt.Errorf("%w: tensor range on %s has min %v above max %v", common.ErrInvalidInput, d, r.Min, r.Max)
		}
		out[d] = r
	}
	for _, s := range concerns {
		c, err := ParseConcern(s)
		if err != nil {
			return nil, err
		}
		cr := concernRanges[c]
		if prev, ok := out[cr.dim]; ok {
			out[cr.dim] = intersect(prev, cr.rng)
			continue
		}
		out[cr.dim] = cr.rng
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// intersect may return an empty range (Min > Max), which matches nothing.
func intersect(a, b common.TensorRange) common.TensorRange {
	return common.TensorRange{Min: max(a.Min, b.Min), Max: min(a.Max, b.Max)}
}
