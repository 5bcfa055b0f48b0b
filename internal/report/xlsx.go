package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/profile-cli/internal/model"
)

// ErrNoTables is returned when a report has nothing to put in a spreadsheet.
var ErrNoTables = eris.New("report: no tabular sections")

// WriteXLSX writes the tabular sections of r as a workbook: financial years,
// revenue segments, regions and customers, one sheet each.
func WriteXLSX(w io.Writer, r *Report) error {
	f := xlsx.NewFile()
	sheets := 0

	if fin := r.Financials(); fin != nil && len(fin.Rows) > 0 {
		sheet, err := addSheet(f, "Financials",
			"Year", "Revenue", "Profit", "Operating Income", "Net Income", "EBITDA",
			"EBITDA Margin (%)", "ROA (%)", "ROE (%)", "Debt/Equity")
		if err != nil {
			return err
		}
		for _, row := range fin.Rows {
			xr := sheet.AddRow()
			xr.AddCell().SetString(row.Year)
			for _, v := range []*float64{
				row.Revenue, row.Profit, row.OperatingIncome, row.NetIncome, row.EBITDA,
				row.EBITDAMargin, row.ROA, row.ROE, row.DebtToEquity,
			} {
				cell := xr.AddCell()
				if v != nil {
					cell.SetFloat(*v)
				}
			}
		}
		sheets++
	}

	if rev := r.Revenue(); rev != nil {
		if len(rev.Segments) > 0 {
			sheet, err := addSheet(f, "Segments", "Segment", "Revenue (USD M)", "Share (%)")
			if err != nil {
				return err
			}
			for _, s := range rev.Segments {
				addValues(sheet.AddRow(), s.Name, s.RevenueUSDMillion, s.PercentageOfTotal)
			}
			sheets++
		}
		if len(rev.Geography) > 0 {
			sheet, err := addSheet(f, "Regions", "Region", "Revenue (USD M)", "Share (%)")
			if err != nil {
				return err
			}
			for _, g := range rev.Geography {
				addValues(sheet.AddRow(), g.Region, g.RevenueUSDMillion, g.Percentage)
			}
			sheets++
		}
	}

	if s, ok := r.Section(model.FieldKeyCustomers); ok && s.Customers != nil && s.Customers.Total > 0 {
		sheet, err := addSheet(f, "Customers", "Customer", "Industry", "Website")
		if err != nil {
			return err
		}
		for _, ind := range s.Customers.Industries {
			for _, c := range ind.Customers {
				row := sheet.AddRow()
				row.AddCell().SetString(c.CompanyName)
				row.AddCell().SetString(c.Industry)
				row.AddCell().SetString(c.CompanyWebsite)
			}
		}
		sheets++
	}

	if sheets == 0 {
		return ErrNoTables
	}
	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

func addSheet(f *xlsx.File, name string, header ...string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}

func addValues(row *xlsx.Row, label string, values ...float64) {
	row.AddCell().SetString(label)
	for _, v := range values {
		row.AddCell().SetFloat(v)
	}
}
