// Package features holds stateless numeric helpers shared by the model
// pipeline and the rule engine.
package features

import (
	"math"

	"github.com/opensource-finance/fraudguard/internal/dataset"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees. Inputs are not range checked.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlambda := (lon2 - lon1) * math.Pi / 180

	a := math.Pow(math.Sin(dphi/2), 2) + math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dlambda/2), 2)
	// Rounding can push a marginally outside [0,1] for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Ratio columns derived from normalized loan data.
const (
	CreditGoodsRatio = "credit_goods_ratio"
	PaymentRate      = "payment_rate"
)

// SafeRatioFeatures adds credit_goods_ratio = credit/(goods_price+1) and
// payment_rate = annuity/(credit+1) when their source columns exist.
// The input is returned unchanged when neither pair is present.
func SafeRatioFeatures(t *dataset.Table) *dataset.Table {
	if t.Has("goods_price") && t.Has("credit") {
		t = withRatio(t, CreditGoodsRatio, "credit", "goods_price")
	}
	if t.Has("annuity") && t.Has("credit") {
		t = withRatio(t, PaymentRate, "annuity", "credit")
	}
	return t
}

func withRatio(t *dataset.Table, name, num, den string) *dataset.Table {
	n, d := t.Floats(num), t.Floats(den)
	out := make([]any, len(n))
	for i := range n {
		out[i] = n[i] / (d[i] + 1.0)
	}
	// lengths match by construction
	res, _ := t.WithColumn(name, out)
	return res
}
