package funnel

// Estimation constants used when a platform does not report a stage
// directly. These are heuristics calibrated against typical affiliate
// performance, not measured values.
const (
	// clicksPerAmazonOrder estimates upstream clicks from Amazon order
	// counts when no click data exists for the creator.
	clicksPerAmazonOrder = 15
	// atcPerItem estimates add-to-cart events from items sold, assuming
	// roughly two carts for every three completed items.
	atcPerItem = 1.5
)

// InstagramPostMetric is one post row from an Instagram export.
type InstagramPostMetric struct {
	PostID      string  `json:"postId"`
	Caption     string  `json:"caption"`
	Impressions float64 `json:"impressions"`
	Reach       float64 `json:"reach"`
	LinkClicks  float64 `json:"linkClicks"`
	Saves       float64 `json:"saves"`
	Likes       float64 `json:"likes"`
}

// LtkProductMetric is one product row from an LTK product performance
// export.
type LtkProductMetric struct {
	ProductName string  `json:"productName"`
	Brand       string  `json:"brand"`
	Clicks      float64 `json:"clicks"`
	ItemsSold   float64 `json:"itemsSold"`
	Revenue     float64 `json:"revenue"`
}

// LtkEarningRow is one row from an LTK earnings export.
type LtkEarningRow struct {
	Date       string  `json:"date"`
	Brand      string  `json:"brand"`
	Product    string  `json:"product"`
	Link       string  `json:"link"`
	Commission float64 `json:"commission"`
}

// AmazonItemMetric is one item record from an Amazon Associates earnings
// report.
type AmazonItemMetric struct {
	ASIN         string  `json:"asin"`
	Title        string  `json:"title"`
	Revenue      float64 `json:"revenue"`
	AdFees       float64 `json:"adFees"`
	ItemsShipped float64 `json:"itemsShipped"`
	TrackingID   string  `json:"trackingId"`
	Category     string  `json:"category"`
	DateShipped  string  `json:"dateShipped"`
}

// Bundle collects all platform exports attributed to a single creator
// before cross-platform funnel assembly.
type Bundle struct {
	CreatorID   string                `json:"creatorId"`
	CreatorName string                `json:"creatorName"`
	Instagram   []InstagramPostMetric `json:"instagram,omitempty"`
	LtkProducts []LtkProductMetric    `json:"ltkProducts,omitempty"`
	LtkEarnings []LtkEarningRow       `json:"ltkEarnings,omitempty"`
	Amazon      []AmazonItemMetric    `json:"amazon,omitempty"`
}

// BuildFromBundle assembles one funnel from a creator's combined platform
// exports. Each stage prefers the platform that measures it most directly
// and falls back to estimates derived from downstream data.
func BuildFromBundle(b Bundle) CreatorFunnel {
	var impressions, igClicks float64
	for _, p := range b.Instagram {
		impressions += p.Impressions
		igClicks += p.LinkClicks
	}

	var ltkClicks, ltkItems, productsRevenue float64
	for _, p := range b.LtkProducts {
		ltkClicks += p.Clicks
		ltkItems += p.ItemsSold
		productsRevenue += p.Revenue
	}

	var earningsCommission float64
	for _, e := range b.LtkEarnings {
		earningsCommission += e.Commission
	}

	var amazonOrders, amazonRevenue float64
	for _, item := range b.Amazon {
		amazonOrders += item.ItemsShipped
		if item.Revenue != 0 {
			amazonRevenue += item.Revenue
		} else {
			amazonRevenue += item.AdFees
		}
	}

	amazonClicksEstimate := round(amazonOrders * clicksPerAmazonOrder)

	clicks := firstNonZero(igClicks, ltkClicks, amazonClicksEstimate)
	dpv := firstNonZero(ltkClicks, igClicks, amazonClicksEstimate)
	atc := round(firstNonZero(ltkItems, amazonOrders) * atcPerItem)
	orders := firstNonZero(amazonOrders, ltkItems)
	ltkRevenue := firstNonZero(productsRevenue, earningsCommission)

	var byPlat []RevenueByPlatform
	if len(b.Instagram) > 0 {
		byPlat = append(byPlat, RevenueByPlatform{Platform: "instagram", Clicks: igClicks})
	}
	if ltkRevenue != 0 || ltkClicks != 0 || ltkItems != 0 {
		byPlat = append(byPlat, RevenueByPlatform{Platform: "ltk", Revenue: ltkRevenue, Orders: ltkItems, Clicks: ltkClicks})
	}
	if amazonRevenue != 0 || amazonOrders != 0 {
		byPlat = append(byPlat, RevenueByPlatform{Platform: "amazon", Revenue: amazonRevenue, Orders: amazonOrders, Clicks: amazonClicksEstimate})
	}

	return CreatorFunnel{
		CreatorID:   b.CreatorID,
		CreatorName: b.CreatorName,
		Funnel: []FunnelStage{
			{Stage: "impressions", Value: impressions},
			{Stage: "clicks", Value: clicks},
			{Stage: "dpv", Value: dpv},
			{Stage: "atc", Value: atc},
			{Stage: "orders", Value: orders},
		},
		ByPlatform: byPlat,
	}
}

// firstNonZero returns the first non-zero value, or 0 when all are zero.
func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
