package common

// GoldilocksParameter describes the optimal band of a numeric property
// of an atom, e.g. a concentration in percent. The absolute bounds are
// safety limits and are at least as wide as the optimal band.
type GoldilocksParameter struct {
	ID          string   `json:"id"`
	AtomID      string   `json:"atom_id"`
	Parameter   string   `json:"parameter"`
	Unit        string   `json:"unit"`
	OptimalMin  float64  `json:"optimal_min"`
	OptimalMax  float64  `json:"optimal_max"`
	AbsoluteMin *float64 `json:"absolute_min,omitempty"`
	AbsoluteMax *float64 `json:"absolute_max,omitempty"`
	SkinType    *string  `json:"skin_type,omitempty"`
	Context     *string  `json:"context,omitempty"`
}

// IsOptimal reports whether v lies inside [OptimalMin, OptimalMax].
func (p GoldilocksParameter) IsOptimal(v float64) bool {
	return v >= p.OptimalMin && v <= p.OptimalMax
}

// IsSafe reports whether v lies inside the absolute bounds, each of which
// defaults to the matching optimal bound when unset.
func (p GoldilocksParameter) IsSafe(v float64) bool {
	lo, hi := p.OptimalMin, p.OptimalMax
	if p.AbsoluteMin != nil {
		lo = *p.AbsoluteMin
	}
	if p.AbsoluteMax != nil {
		hi = *p.AbsoluteMax
	}
	return v >= lo && v <= hi
}

// Deviation is the signed distance of v outside the optimal band:
// negative below, positive above, zero inside.
func (p GoldilocksParameter) Deviation(v float64) float64 {
	switch {
	case v < p.OptimalMin:
		return v - p.OptimalMin
	case v > p.OptimalMax:
		return v - p.OptimalMax
	default:
		return 0
	}
}

// ParameterCheck is the evaluation of one value against a parameter.
type ParameterCheck struct {
	Parameter GoldilocksParameter `json:"parameter"`
	Value     float64             `json:"value"`
	Optimal   bool                `json:"optimal"`
	Safe      bool                `json:"safe"`
	Deviation float64             `json:"deviation"`
}

// Check evaluates v against p.
func (p GoldilocksParameter) Check(v float64) ParameterCheck {
	return ParameterCheck{
		Parameter: p,
		Value:     v,
		Optimal:   p.IsOptimal(v),
		Safe:      p.IsSafe(v),
		Deviation: p.Deviation(v),
	}
}
