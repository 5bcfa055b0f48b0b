package report

// Financial series keys inside Financial_Overview.
const (
	seriesRevenue         = "revenue"
	seriesProfit          = "profit"
	seriesOperatingIncome = "operating_income"
	seriesNetIncome       = "net_income"
	seriesEBITDA          = "EBITDA"
	seriesEBITDAMargin    = "EBITDA_margin"
	seriesROA             = "ROA"
	seriesROE             = "ROE"
	seriesDebtToEquity    = "Debt_to_Equity_ratio"
)

// YearRow is one fiscal year of merged financial series. Missing values are nil.
type YearRow struct {
	Year            string   `json:"year" yaml:"year"`
	Revenue         *float64 `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	Profit          *float64 `json:"profit,omitempty" yaml:"profit,omitempty"`
	OperatingIncome *float64 `json:"operating_income,omitempty" yaml:"operating_income,omitempty"`
	NetIncome       *float64 `json:"net_income,omitempty" yaml:"net_income,omitempty"`
	EBITDA          *float64 `json:"ebitda,omitempty" yaml:"ebitda,omitempty"`
	EBITDAMargin    *float64 `json:"ebitda_margin,omitempty" yaml:"ebitda_margin,omitempty"`
	ROA             *float64 `json:"roa,omitempty" yaml:"roa,omitempty"`
	ROE             *float64 `json:"roe,omitempty" yaml:"roe,omitempty"`
	DebtToEquity    *float64 `json:"debt_equity,omitempty" yaml:"debt_equity,omitempty"`
}

// Trends holds percent change between the last two years.
type Trends struct {
	Revenue float64 `json:"revenue" yaml:"revenue"`
	Profit  float64 `json:"profit" yaml:"profit"`
	EBITDA  float64 `json:"ebitda" yaml:"ebitda"`
	ROE     float64 `json:"roe" yaml:"roe"`
}

// Financials is the derived view of Financial_Overview.
type Financials struct {
	Rows     []YearRow `json:"rows" yaml:"rows"`
	Trends   Trends    `json:"trends" yaml:"trends"`
	Insights string    `json:"insights,omitempty" yaml:"insights,omitempty"`
	// Revenue is set when the overview embeds its own Revenue_Breakdown.
	Revenue *Revenue `json:"revenue_breakdown,omitempty" yaml:"revenue_breakdown,omitempty"`
}

// BuildFinancials merges the per-year series of a Financial_Overview object.
// Rows follow the years of the revenue series.
func BuildFinancials(data map[string]any) *Financials {
	series := make(map[string]map[string]float64)
	for _, key := range []string{
		seriesProfit, seriesOperatingIncome, seriesNetIncome, seriesEBITDA,
		seriesEBITDAMargin, seriesROA, seriesROE, seriesDebtToEquity,
	} {
		series[key] = yearIndex(data[key])
	}

	f := &Financials{Insights: text(data["Insights"])}
	for _, item := range objects(data[seriesRevenue]) {
		year := text(item["year"])
		row := YearRow{Year: year}
		if v, ok := number(item["value"]); ok {
			row.Revenue = &v
		}
		row.Profit = lookup(series[seriesProfit], year)
		row.OperatingIncome = lookup(series[seriesOperatingIncome], year)
		row.NetIncome = lookup(series[seriesNetIncome], year)
		row.EBITDA = lookup(series[seriesEBITDA], year)
		row.EBITDAMargin = lookup(series[seriesEBITDAMargin], year)
		row.ROA = lookup(series[seriesROA], year)
		row.ROE = lookup(series[seriesROE], year)
		row.DebtToEquity = lookup(series[seriesDebtToEquity], year)
		f.Rows = append(f.Rows, row)
	}

	f.Trends = Trends{
		Revenue: Trend(f.Rows, func(r YearRow) *float64 { return r.Revenue }),
		Profit:  Trend(f.Rows, func(r YearRow) *float64 { return r.Profit }),
		EBITDA:  Trend(f.Rows, func(r YearRow) *float64 { return r.EBITDA }),
		ROE:     Trend(f.Rows, func(r YearRow) *float64 { return r.ROE }),
	}

	if rb, ok := data["Revenue_Breakdown"].(map[string]any); ok {
		f.Revenue = BuildRevenue(rb)
	}
	return f
}

// Trend returns the percent change of field between the last two rows. It is
// zero with fewer than two rows or when the previous value is zero. Missing
// values count as zero.
func Trend(rows []YearRow, field func(YearRow) *float64) float64 {
	if len(rows) < 2 {
		return 0
	}
	latest := deref(field(rows[len(rows)-1]))
	previous := deref(field(rows[len(rows)-2]))
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}

// yearIndex maps year to value for a [{year, value}] series. The first
// entry wins when a year repeats.
func yearIndex(v any) map[string]float64 {
	out := make(map[string]float64)
	for _, item := range objects(v) {
		year := text(item["year"])
		if _, seen := out[year]; seen {
			continue
		}
		if n, ok := number(item["value"]); ok {
			out[year] = n
		}
	}
	return out
}

func lookup(idx map[string]float64, year string) *float64 {
	v, ok := idx[year]
	if !ok {
		return nil
	}
	return &v
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
