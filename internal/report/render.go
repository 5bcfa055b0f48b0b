package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding for a report.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("report: unknown format %q (want markdown, json, yaml or xlsx)", s)
	}
}

// ContentType returns the HTTP media type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Write encodes r to w in the given format.
func Write(w io.Writer, r *Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(r), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(r))
		return eris.Wrap(err, "report: write markdown")
	default:
		return eris.Errorf("report: unsupported format %q", f)
	}
}

// Markdown renders r as a markdown document.
func Markdown(r *Report) string {
	md := &markdown{p: message.NewPrinter(language.English)}

	title := r.Company
	if title == "" {
		title = "Company"
	}
	md.printf("# %s Company Profile\n\n", title)
	if r.Website != "" {
		md.printf("Website: %s\n\n", r.Website)
	}
	if len(r.Sections) == 0 {
		md.printf("_No report sections available._\n")
		return md.b.String()
	}

	for _, s := range r.Sections {
		md.printf("## %s\n\n_%s_\n\n", s.Title, s.Description)
		switch {
		case s.Financials != nil:
			md.financials(s.Financials)
		case s.Revenue != nil:
			md.revenue(s.Revenue)
		case s.Leadership != nil:
			md.leadership(s.Leadership)
		case s.Customers != nil:
			md.customers(s.Customers)
		default:
			md.text(s.Text)
		}
	}
	return md.b.String()
}

type markdown struct {
	b strings.Builder
	p *message.Printer
}

func (m *markdown) printf(format string, args ...any) {
	m.p.Fprintf(&m.b, format, args...)
}

func (m *markdown) text(s string) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		m.printf("```json\n%s\n```\n\n", s)
		return
	}
	m.b.WriteString(s)
	m.b.WriteString("\n\n")
}

func (m *markdown) num(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return m.p.Sprintf("%.1f", *v)
}

func (m *markdown) change(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return sign + m.p.Sprintf("%.1f", pct) + "%"
}

func (m *markdown) billions(millions float64) string {
	return m.p.Sprintf("$%.1fB", millions/1000)
}

func (m *markdown) financials(f *Financials) {
	if len(f.Rows) > 0 {
		m.printf("| Year | Revenue | Profit | Operating Income | Net Income | EBITDA | EBITDA Margin (%%) | ROA (%%) | ROE (%%) | Debt/Equity |\n")
		m.printf("|---|---:|---:|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, row := range f.Rows {
			m.printf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				row.Year, m.num(row.Revenue), m.num(row.Profit), m.num(row.OperatingIncome),
				m.num(row.NetIncome), m.num(row.EBITDA), m.num(row.EBITDAMargin),
				m.num(row.ROA), m.num(row.ROE), m.num(row.DebtToEquity))
		}
		m.printf("\n**Year-over-year**\n\n")
		m.printf("- Revenue: %s\n", m.change(f.Trends.Revenue))
		m.printf("- Profit: %s\n", m.change(f.Trends.Profit))
		m.printf("- EBITDA: %s\n", m.change(f.Trends.EBITDA))
		m.printf("- ROE: %s\n\n", m.change(f.Trends.ROE))
	}
	if f.Insights != "" {
		m.printf("**Insights**\n\n%s\n\n", f.Insights)
	}
	if f.Revenue != nil {
		m.revenue(f.Revenue)
	}
}

func (m *markdown) revenue(r *Revenue) {
	fy := ""
	if r.FiscalYear != "" {
		fy = " (" + r.FiscalYear + ")"
	}
	if r.TotalGroupRevenueUSDMM != 0 {
		m.printf("Total revenue%s: %s\n\n", fy, m.billions(r.TotalGroupRevenueUSDMM))
	}
	if len(r.Segments) > 0 {
		m.printf("**Revenue by segment%s**\n\n| Segment | Revenue ($B) | Share (%%) |\n|---|---:|---:|\n", fy)
		for _, s := range r.Segments {
			m.printf("| %s | %.1f | %.1f |\n", s.Name, s.RevenueUSDMillion/1000, s.PercentageOfTotal)
		}
		m.b.WriteString("\n")
	}
	if len(r.Divisions) > 0 {
		m.printf("**Revenue by division%s**\n\n| Division | Type | Revenue ($B) | Share (%%) |\n|---|---|---:|---:|\n", fy)
		for _, d := range r.Divisions {
			m.printf("| %s | %s | %.1f | %.1f |\n", d.Name, d.Type, d.RevenueUSDMillion/1000, d.PercentageOfTotal)
		}
		m.b.WriteString("\n")
	}
	if len(r.Geography) > 0 {
		m.printf("**Revenue by region%s**\n\n| Region | Revenue ($B) | Share (%%) |\n|---|---:|---:|\n", fy)
		for _, g := range r.Geography {
			m.printf("| %s | %.1f | %.1f |\n", g.Region, g.RevenueUSDMillion/1000, g.Percentage)
		}
		m.b.WriteString("\n")
	}
}

func (m *markdown) leadership(l *Leadership) {
	m.printf("Key executives: %d. Average tenure: %d years.\n\n", len(l.Leaders), l.AverageTenureYears)
	for _, leader := range l.Leaders {
		m.printf("### %s", leader.Name)
		if leader.Role != "" {
			m.printf(", %s", leader.Role)
		}
		m.b.WriteString("\n\n")
		if leader.YearJoined != "" {
			m.printf("- Joined: %s\n", leader.YearJoined)
		}
		if leader.Tenure != "" {
			m.printf("- Tenure: %s\n", leader.Tenure)
		}
		if leader.KeyResponsibilities != "" {
			m.printf("- Responsibilities: %s\n", leader.KeyResponsibilities)
		}
		if len(leader.PreviousExperience) > 0 {
			m.printf("- Previous experience: %s\n", strings.Join(leader.PreviousExperience, "; "))
		}
		if leader.LinkedInURL != "" {
			m.printf("- LinkedIn: %s\n", leader.LinkedInURL)
		}
		if leader.Description != "" {
			m.printf("\n%s\n", leader.Description)
		}
		m.b.WriteString("\n")
	}
}

func (m *markdown) customers(c *Customers) {
	m.printf("%d customers across %d industries.\n\n", c.Total, len(c.Industries))
	if len(c.Industries) == 0 {
		return
	}
	m.printf("| Industry | Customers | Share (%%) |\n|---|---:|---:|\n")
	for _, ind := range c.Industries {
		m.printf("| %s | %d | %.1f |\n", ind.Industry, ind.Count, ind.Percentage)
	}
	m.b.WriteString("\n")
	for _, ind := range c.Industries {
		m.printf("### %s\n\n", ind.Industry)
		for _, cust := range ind.Customers {
			if cust.CompanyWebsite != "" {
				m.printf("- %s (%s)\n", cust.CompanyName, cust.CompanyWebsite)
			} else {
				m.printf("- %s\n", cust.CompanyName)
			}
		}
		m.b.WriteString("\n")
	}
}
