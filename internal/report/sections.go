// Package report derives a readable company report from a stored profile:
// the section catalogue, financial series, revenue mix, leadership and
// customer distributions, rendered as markdown, JSON, YAML or a spreadsheet.
package report

import "github.com/sells-group/profile-cli/internal/model"

// Section describes one report section in display order.
type Section struct {
	Key              string `json:"key" yaml:"key"`
	Title            string `json:"title" yaml:"title"`
	Description      string `json:"description" yaml:"description"`
	HasVisualization bool   `json:"has_visualization" yaml:"has_visualization"`
}

// Sections is the full catalogue in display order.
var Sections = []Section{
	{Key: model.FieldBusinessOverview, Title: "Executive Summary", Description: "Core business model and strategic overview"},
	{Key: model.FieldFinancialOverview, Title: "Financial Performance", Description: "Key financial metrics and performance indicators", HasVisualization: true},
	{Key: model.FieldRevenueBreakdown, Title: "Revenue Analysis", Description: "Revenue segmentation and market analysis", HasVisualization: true},
	{Key: model.FieldKeyManagement, Title: "Leadership Team", Description: "Executive leadership and management structure", HasVisualization: true},
	{Key: model.FieldKeyCustomers, Title: "Customer Portfolio", Description: "Major clients and strategic partnerships", HasVisualization: true},
	{Key: model.FieldProductsAndServices, Title: "Products & Services", Description: "Complete portfolio and service offerings"},
	{Key: model.FieldEndMarkets, Title: "Market Position", Description: "Target markets and competitive positioning"},
	{Key: model.FieldRecentDevelopments, Title: "Recent Developments", Description: "Latest news, updates, and strategic initiatives"},
	{Key: model.FieldHistoricalTimeline, Title: "Company History", Description: "Key milestones and corporate evolution"},
	{Key: model.FieldMergersAndAcquisitions, Title: "M&A Activity", Description: "Mergers, acquisitions, and strategic transactions"},
	{Key: model.FieldFinancingDetails, Title: "Capital Structure", Description: "Funding history and financial structure"},
	{Key: model.FieldOwnershipDetails, Title: "Ownership Structure", Description: "Shareholding and ownership information"},
}

// Present returns the catalogue sections that carry a value in p.
func Present(p model.CompanyProfile) []Section {
	var out []Section
	for _, s := range Sections {
		if p.Has(s.Key) {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns the catalogue entry for key.
func Lookup(key string) (Section, bool) {
	for _, s := range Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}
