// Package funnel aggregates normalized rows and platform-specific metric
// bundles into per-creator conversion funnels.
package funnel

import (
	"math"

	"funneldash/internal/logging"
	"funneldash/internal/mapping"
)

// Stage order is fixed: awareness first, purchase last.
var stageOrder = []string{"impressions", "clicks", "dpv", "atc", "orders"}

// impressionsPerClick estimates impressions from clicks when no impression
// data is present in the upload. Ten impressions per click is a rough
// mid-funnel content benchmark, not a measured value.
const impressionsPerClick = 10

// unknownCreatorKey buckets rows whose creator could not be resolved. The
// bucket stays visible in output so unattributed volume is never silently
// dropped.
const unknownCreatorKey = "unknown_creator"

// FunnelStage is one step of the conversion funnel.
type FunnelStage struct {
	Stage string  `json:"stage"`
	Value float64 `json:"value"`
}

// RevenueByPlatform accumulates revenue, orders, and clicks for one
// source platform contributing to a creator.
type RevenueByPlatform struct {
	Platform string  `json:"platform"`
	Revenue  float64 `json:"revenue"`
	Orders   float64 `json:"orders"`
	Clicks   float64 `json:"clicks"`
}

// CreatorFunnel is the aggregate for a single creator: ordered funnel
// stages plus a per-platform revenue breakdown, one entry per platform.
type CreatorFunnel struct {
	CreatorID   string              `json:"creatorId"`
	CreatorName string              `json:"creatorName"`
	Funnel      []FunnelStage       `json:"funnel"`
	ByPlatform  []RevenueByPlatform `json:"revenueByPlatform"`
}

// TotalRevenue sums revenue across every platform bucket.
func (f CreatorFunnel) TotalRevenue() float64 {
	total := 0.0
	for _, p := range f.ByPlatform {
		total += p.Revenue
	}
	return total
}

// PlatformBucket returns the revenue bucket for one platform.
func (f CreatorFunnel) PlatformBucket(platform string) (RevenueByPlatform, bool) {
	for _, p := range f.ByPlatform {
		if p.Platform == platform {
			return p, true
		}
	}
	return RevenueByPlatform{}, false
}

type accumulator struct {
	name      string
	clicks    float64
	dpv       float64
	atc       float64
	orders    float64
	byPlat    map[string]RevenueByPlatform
	platOrder []string
}

// BuildFromRows groups normalized rows by creator and builds one funnel per
// group. Rows without a creator land in a shared "Unassigned" bucket.
// Impressions are estimated from clicks since row-level uploads rarely
// carry them.
func BuildFromRows(rows []mapping.NormalizedRow) []CreatorFunnel {
	groups := map[string]*accumulator{}
	order := []string{}

	for _, row := range rows {
		key := row.Creator
		name := row.Creator
		if key == "" {
			key = unknownCreatorKey
			name = "Unassigned"
		}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{name: name, byPlat: map[string]RevenueByPlatform{}}
			groups[key] = acc
			order = append(order, key)
		}
		acc.clicks += row.Clicks
		acc.dpv += row.DPV
		acc.atc += row.ATC
		acc.orders += row.Orders

		plat := string(row.Platform)
		if plat == "" {
			plat = "unknown"
		}
		bucket, seen := acc.byPlat[plat]
		if !seen {
			bucket.Platform = plat
			acc.platOrder = append(acc.platOrder, plat)
		}
		bucket.Revenue += row.Revenue
		bucket.Orders += row.Orders
		bucket.Clicks += row.Clicks
		acc.byPlat[plat] = bucket
	}

	funnels := make([]CreatorFunnel, 0, len(groups))
	for _, key := range order {
		acc := groups[key]
		values := map[string]float64{
			"impressions": acc.clicks * impressionsPerClick,
			"clicks":      acc.clicks,
			"dpv":         acc.dpv,
			"atc":         acc.atc,
			"orders":      acc.orders,
		}
		stages := make([]FunnelStage, 0, len(stageOrder))
		for _, s := range stageOrder {
			stages = append(stages, FunnelStage{Stage: s, Value: values[s]})
		}
		byPlat := make([]RevenueByPlatform, 0, len(acc.platOrder))
		for _, p := range acc.platOrder {
			byPlat = append(byPlat, acc.byPlat[p])
		}
		funnels = append(funnels, CreatorFunnel{
			CreatorID:   key,
			CreatorName: acc.name,
			Funnel:      stages,
			ByPlatform:  byPlat,
		})
	}

	logging.Logf(logging.Debug, "Built %d creator funnels from %d rows", len(funnels), len(rows))
	return funnels
}

// round mirrors banker-free rounding to the nearest integer, used for
// estimated stage values.
func round(v float64) float64 {
	return math.Round(v)
}
