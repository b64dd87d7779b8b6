package common

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// TensorDimension indexes one of the 17 named dimensions of an atom
// profile.
type TensorDimension int

const (
	DimHydration TensorDimension = iota
	DimSebumRegulation
	DimAntiAgingPotency
	DimBrightening
	DimAntiInflammatory
	DimBarrierRepair
	DimExfoliation
	DimAntioxidantCapacity
	DimPhotoprotection
	DimIrritationPotential
	DimFormulationStability
	DimPenetrationDepth
	DimClinicalEvidence
	DimInnovation
	DimSustainability
	DimPriceAccessibility
	DimMarketSaturation

	TensorDimensionCount int = iota
)

var tensorDimensionNames = [TensorDimensionCount]string{
	"hydration",
	"sebum_regulation",
	"anti_aging_potency",
	"brightening",
	"anti_inflammatory",
	"barrier_repair",
	"exfoliation",
	"antioxidant_capacity",
	"photoprotection",
	"irritation_potential",
	"formulation_stability",
	"penetration_depth",
	"clinical_evidence",
	"innovation",
	"sustainability",
	"price_accessibility",
	"market_saturation",
}

func (d TensorDimension) String() string {
	if !d.Valid() {
		return fmt.Sprintf("dimension(%d)", int(d))
	}
	return tensorDimensionNames[d]
}

func (d TensorDimension) Valid() bool {
	return d >= 0 && int(d) < TensorDimensionCount
}

// ParseTensorDimension resolves a snake_case or camelCase dimension name.
func ParseTensorDimension(s string) (TensorDimension, error) {
	norm := normalizeDimensionName(s)
	for i, name := range tensorDimensionNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return TensorDimension(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown tensor dimension %q", ErrInvalidInput, s)
}

func normalizeDimensionName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, "-", "")
}

// Tensor is the fixed 17-dimension numeric profile of an atom. Each
// dimension is either measured (a value in [0,1]) or absent. Vector is an
// optional precomputed flat form.
type Tensor struct {
	AtomID string
	Vector []float32

	values  [TensorDimensionCount]float64
	present [TensorDimensionCount]bool
}

// NewTensor builds a tensor from named values. Values are clamped to [0,1].
func NewTensor(atomID string, values map[TensorDimension]float64) *Tensor {
	t := &Tensor{AtomID: atomID}
	for d, v := range values {
		t.Set(d, v)
	}
	return t
}

// Set stores v for d, clamped into [0,1]. NaN and unknown dimensions are ignored.
func (t *Tensor) Set(d TensorDimension, v float64) {
	if !d.Valid() || math.IsNaN(v) {
		return
	}
	t.values[d] = Clamp(v, 0, 1)
	t.present[d] = true
}

// Unset marks d as not measured.
func (t *Tensor) Unset(d TensorDimension) {
	if !d.Valid() {
		return
	}
	t.values[d] = 0
	t.present[d] = false
}

// Get returns the value of d and whether it was measured.
func (t *Tensor) Get(d TensorDimension) (float64, bool) {
	if t == nil || !d.Valid() || !t.present[d] {
		return 0, false
	}
	return t.values[d], true
}

// Present returns the number of measured dimensions.
func (t *Tensor) Present() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, p := range t.present {
		if p {
			n++
		}
	}
	return n
}

// Flat returns the full-length vector with absent dimensions as zero.
// A precomputed Vector of the right length wins.
func (t *Tensor) Flat() []float32 {
	out := make([]float32, TensorDimensionCount)
	if t == nil {
		return out
	}
	if len(t.Vector) == TensorDimensionCount {
		copy(out, t.Vector)
		return out
	}
	for i := range TensorDimensionCount {
		if t.present[i] {
			out[i] = float32(t.values[i])
		}
	}
	return out
}

// Map returns the measured dimensions keyed by name.
func (t *Tensor) Map() map[string]float64 {
	out := make(map[string]float64)
	if t == nil {
		return out
	}
	for i := range TensorDimensionCount {
		if t.present[i] {
			out[tensorDimensionNames[i]] = t.values[i]
		}
	}
	return out
}

func (t *Tensor) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

// UnmarshalJSON accepts an object of dimension name to value. Unknown
// names or values outside [0,1] are rejected.
func (t *Tensor) UnmarshalJSON(data []byte) error {
	raw := map[string]float64{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: tensor: %v", ErrInvalidInput, err)
	}
	parsed, err := ParseTensorValues(raw)
	if err != nil {
		return err
	}
	*t = Tensor{AtomID: t.AtomID}
	for d, v := range parsed {
		t.Set(d, v)
	}
	return nil
}

// ParseTensorValues validates a name-keyed profile.
func ParseTensorValues(raw map[string]float64) (map[TensorDimension]float64, error) {
	out := make(map[TensorDimension]float64, len(raw))
	for name, v := range raw {
		d, err := ParseTensorDimension(name)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: tensor %s=%v outside [0,1]", ErrInvalidInput, d, v)
		}
		out[d] = v
	}
	return out, nil
}

// TensorRange bounds one dimension. Both ends inclusive.
type TensorRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range.
func (r TensorRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
