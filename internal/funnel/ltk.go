package funnel

import "funneldash/internal/decode"

// ExtractLTKProducts reads product performance rows from a decoded LTK
// analytics export. Revenue comes from the commission column when present,
// earnings otherwise. Rows with neither a product name nor a brand are
// skipped.
func ExtractLTKProducts(table decode.RawTable) []LtkProductMetric {
	productCol := columnByFragment(table.Columns, "product_name")
	brandCol := columnByFragment(table.Columns, "advertiser_name")
	clicksCol := columnByFragment(table.Columns, "click")
	itemsCol := columnByFragment(table.Columns, "items_sold")
	revenueCol := columnByFragment(table.Columns, "commission")
	if revenueCol == "" {
		revenueCol = columnByFragment(table.Columns, "earnings")
	}

	out := []LtkProductMetric{}
	for _, row := range table.Rows {
		product := cellString(row, productCol)
		brand := cellString(row, brandCol)
		if product == "" && brand == "" {
			continue
		}
		out = append(out, LtkProductMetric{
			ProductName: product,
			Brand:       brand,
			Clicks:      cellNumber(row, clicksCol),
			ItemsSold:   cellNumber(row, itemsCol),
			Revenue:     cellNumber(row, revenueCol),
		})
	}
	return out
}

// ExtractLTKEarnings reads commission rows from a decoded LTK earnings
// export. Rows without a brand are skipped.
func ExtractLTKEarnings(table decode.RawTable) []LtkEarningRow {
	dateCol := columnByFragment(table.Columns, "date")
	brandCol := columnByFragment(table.Columns, "brand")
	productCol := columnByFragment(table.Columns, "product")
	linkCol := columnByFragment(table.Columns, "direct to retailer")
	commissionCol := columnByFragment(table.Columns, "commission")

	out := []LtkEarningRow{}
	for _, row := range table.Rows {
		brand := cellString(row, brandCol)
		if brand == "" {
			continue
		}
		out = append(out, LtkEarningRow{
			Date:       cellString(row, dateCol),
			Brand:      brand,
			Product:    cellString(row, productCol),
			Link:       cellString(row, linkCol),
			Commission: cellNumber(row, commissionCol),
		})
	}
	return out
}
