package report

import "sort"

// Segment is one business segment's revenue.
type Segment struct {
	Name              string  `json:"segment" yaml:"segment"`
	RevenueUSDMillion float64 `json:"revenue_usd_million" yaml:"revenue_usd_million"`
	PercentageOfTotal float64 `json:"percentage_of_total" yaml:"percentage_of_total"`
}

// Division is one reporting division's revenue.
type Division struct {
	Name              string  `json:"division" yaml:"division"`
	Type              string  `json:"division_type,omitempty" yaml:"division_type,omitempty"`
	RevenueUSDMillion float64 `json:"revenue_usd_million" yaml:"revenue_usd_million"`
	PercentageOfTotal float64 `json:"percentage_of_total" yaml:"percentage_of_total"`
}

// Region is revenue attributed to a geographic region, summed across segments.
type Region struct {
	Region            string  `json:"region" yaml:"region"`
	RevenueUSDMillion float64 `json:"revenue_usd_million" yaml:"revenue_usd_million"`
	Percentage        float64 `json:"percentage" yaml:"percentage"`
}

// Revenue is the derived view of Revenue_Breakdown.
type Revenue struct {
	FiscalYear             string     `json:"fiscal_year,omitempty" yaml:"fiscal_year,omitempty"`
	TotalGroupRevenueUSDMM float64    `json:"total_group_revenue_usd_million" yaml:"total_group_revenue_usd_million"`
	Segments               []Segment  `json:"segments,omitempty" yaml:"segments,omitempty"`
	Divisions              []Division `json:"divisions,omitempty" yaml:"divisions,omitempty"`
	Geography              []Region   `json:"geography,omitempty" yaml:"geography,omitempty"`
}

// BuildRevenue extracts segments and divisions and aggregates each segment's
// geography_breakdown per region, ordered by revenue descending.
func BuildRevenue(data map[string]any) *Revenue {
	r := &Revenue{
		FiscalYear:             text(data["fiscal_year"]),
		TotalGroupRevenueUSDMM: numberOr(data["total_group_revenue_usd_million"]),
	}

	regions := make(map[string]int)
	for _, seg := range objects(data["revenue_by_segment"]) {
		r.Segments = append(r.Segments, Segment{
			Name:              text(seg["segment"]),
			RevenueUSDMillion: numberOr(seg["revenue_usd_million"]),
			PercentageOfTotal: numberOr(seg["percentage_of_total"]),
		})
		for _, geo := range objects(seg["geography_breakdown"]) {
			name := text(geo["region"])
			rev := numberOr(geo["revenue_usd_million"])
			pct := numberOr(geo["percentage_of_total"])
			if i, ok := regions[name]; ok {
				r.Geography[i].RevenueUSDMillion += rev
				r.Geography[i].Percentage += pct
				continue
			}
			regions[name] = len(r.Geography)
			r.Geography = append(r.Geography, Region{Region: name, RevenueUSDMillion: rev, Percentage: pct})
		}
	}
	sort.SliceStable(r.Geography, func(i, j int) bool {
		return r.Geography[i].RevenueUSDMillion > r.Geography[j].RevenueUSDMillion
	})

	for _, div := range objects(data["revenue_by_division"]) {
		r.Divisions = append(r.Divisions, Division{
			Name:              text(div["division"]),
			Type:              text(div["division_type"]),
			RevenueUSDMillion: numberOr(div["revenue_usd_million"]),
			PercentageOfTotal: numberOr(div["percentage_of_total"]),
		})
	}
	return r
}
