package store

import "funneldash/internal/funnel"

// DemoFunnels returns the built-in sample funnels served before any real
// data has been ingested. A fresh copy is returned on every call so callers
// cannot mutate the canonical set.
func DemoFunnels() []funnel.CreatorFunnel {
	return []funnel.CreatorFunnel{
		{
			CreatorID:   "creator-alpha",
			CreatorName: "Nicki Monroe",
			Funnel: []funnel.FunnelStage{
				{Stage: "impressions", Value: 850000},
				{Stage: "clicks", Value: 48500},
				{Stage: "dpv", Value: 32000},
				{Stage: "atc", Value: 12500},
				{Stage: "orders", Value: 1850},
			},
			ByPlatform: []funnel.RevenueByPlatform{
				{Platform: "instagram", Revenue: 95000, Orders: 720, Clicks: 18500},
				{Platform: "ltk", Revenue: 120000, Orders: 880, Clicks: 22000},
				{Platform: "amazon", Revenue: 30000, Orders: 250, Clicks: 8000},
			},
		},
		{
			CreatorID:   "creator-beta",
			CreatorName: "Sarah Chen",
			Funnel: []funnel.FunnelStage{
				{Stage: "impressions", Value: 620000},
				{Stage: "clicks", Value: 35000},
				{Stage: "dpv", Value: 24000},
				{Stage: "atc", Value: 0},
				{Stage: "orders", Value: 1200},
			},
			ByPlatform: []funnel.RevenueByPlatform{
				{Platform: "instagram", Revenue: 78000, Orders: 540, Clicks: 15500},
				{Platform: "ltk", Revenue: 92000, Orders: 660, Clicks: 19500},
			},
		},
		{
			CreatorID:   "creator-gamma",
			CreatorName: "Maya Rodriguez",
			Funnel: []funnel.FunnelStage{
				{Stage: "impressions", Value: 480000},
				{Stage: "clicks", Value: 28000},
				{Stage: "dpv", Value: 0},
				{Stage: "atc", Value: 8500},
				{Stage: "orders", Value: 950},
			},
			ByPlatform: []funnel.RevenueByPlatform{
				{Platform: "instagram", Revenue: 52000, Orders: 380, Clicks: 14000},
				{Platform: "amazon", Revenue: 41000, Orders: 570, Clicks: 14000},
			},
		},
	}
}
