package report

import "github.com/sells-group/profile-cli/internal/model"

// Report is the derived view of one company profile.
type Report struct {
	Company  string          `json:"company" yaml:"company"`
	Website  string          `json:"website,omitempty" yaml:"website,omitempty"`
	Sections []SectionReport `json:"sections" yaml:"sections"`
}

// SectionReport is one rendered section. Structured sections set exactly one
// of the derived views; every other section carries Text.
type SectionReport struct {
	Section `yaml:",inline"`

	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	Financials *Financials `json:"financials,omitempty" yaml:"financials,omitempty"`
	Revenue    *Revenue    `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	Leadership *Leadership `json:"leadership,omitempty" yaml:"leadership,omitempty"`
	Customers  *Customers  `json:"customers,omitempty" yaml:"customers,omitempty"`
}

// Build derives a report from p. Only sections present in p are included.
func Build(p model.CompanyProfile) *Report {
	r := &Report{
		Company: p.Name(),
		Website: p.String(model.FieldCompanyWebsite),
	}
	for _, s := range Present(p) {
		r.Sections = append(r.Sections, buildSection(s, p[s.Key]))
	}
	return r
}

func buildSection(s Section, value any) SectionReport {
	sr := SectionReport{Section: s}
	obj, isObj := value.(map[string]any)
	if s.HasVisualization && isObj {
		switch s.Key {
		case model.FieldFinancialOverview:
			sr.Financials = BuildFinancials(obj)
			return sr
		case model.FieldRevenueBreakdown:
			sr.Revenue = BuildRevenue(obj)
			return sr
		case model.FieldKeyManagement:
			sr.Leadership = BuildLeadership(obj)
			return sr
		case model.FieldKeyCustomers:
			sr.Customers = BuildCustomers(obj)
			return sr
		}
	}
	if str, ok := value.(string); ok {
		sr.Text = str
	} else {
		sr.Text = indentJSON(value)
	}
	return sr
}

// Section returns the rendered section for key.
func (r *Report) Section(key string) (SectionReport, bool) {
	for _, s := range r.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return SectionReport{}, false
}

// Financials returns the first financial view in the report, including one
// nested inside the financial overview.
func (r *Report) Financials() *Financials {
	if s, ok := r.Section(model.FieldFinancialOverview); ok {
		return s.Financials
	}
	return nil
}

// Revenue returns the revenue view, falling back to the one embedded in the
// financial overview.
func (r *Report) Revenue() *Revenue {
	if s, ok := r.Section(model.FieldRevenueBreakdown); ok && s.Revenue != nil {
		return s.Revenue
	}
	if f := r.Financials(); f != nil {
		return f.Revenue
	}
	return nil
}
