package pricing

import "sort"

// Selection is the row chosen for a model's headline price. When Available is
// false the caller must show the "coming soon" state instead of NetPrice.
type Selection struct {
	Price     VehiclePrice
	NetPrice  int64
	Available bool
}

// ResolveCheapest picks the cheapest available row by net price, falling back
// to the cheapest row overall marked unavailable. Ties keep input order. The
// second result is false when rows is empty.
func ResolveCheapest(rows []VehiclePrice) (Selection, bool) {
	if len(rows) == 0 {
		return Selection{}, false
	}

	sorted := make([]VehiclePrice, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NetPrice() < sorted[j].NetPrice()
	})

	for _, row := range sorted {
		if row.PriceAvailable {
			return Selection{Price: row, NetPrice: row.NetPrice(), Available: true}, true
		}
	}
	return Selection{Price: sorted[0], NetPrice: sorted[0].NetPrice(), Available: false}, true
}
