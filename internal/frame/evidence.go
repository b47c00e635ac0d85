package frame

// Evidence is the open per-finding map exposed to UIs. Values are expected
// to be a number (float64 or int), bool, string, a numeric array
// ([]float64 or [3]float64), or map[string]any; the
// engine does not enforce this beyond JSON's own encoding rules, per §9's
// "keep as an open map" design note.
type Evidence map[string]any
