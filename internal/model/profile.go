package model

import (
	"encoding/json"
	"fmt"
)

// Profile field names as produced by the remote analysis tool.
const (
	FieldCompanyName            = "Company_Name"
	FieldCompanyWebsite         = "Company_Website"
	FieldProductsAndServices    = "Products_and_Services_Portfolio"
	FieldHeadquarters           = "Headquarters"
	FieldEndMarkets             = "End_Markets"
	FieldKeyCustomers           = "Key_Customers"
	FieldNumberOfEmployees      = "Number_of_Employees"
	FieldKeyManagement          = "Key_Management"
	FieldFinancialOverview      = "Financial_Overview"
	FieldHistoricalTimeline     = "Historical_Timeline"
	FieldMergersAndAcquisitions = "Key_Merger_and_Acquisitions"
	FieldRecentDevelopments     = "Recent_Developments"
	FieldFinancingDetails       = "Financing_Details"
	FieldOwnershipDetails       = "Ownership_Details"
	FieldRevenueBreakdown       = "Revenue_Breakdown"
	FieldBusinessOverview       = "Business_Overview"
)

// CompanyProfile is the structured result of a completed analysis. Values
// keep whatever JSON shape the service produced: strings for narrative
// fields, nested objects and arrays for financial and structured fields.
type CompanyProfile map[string]any

// String returns the field as text. Non-string values are rendered as JSON.
func (p CompanyProfile) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Object returns the field when it holds a JSON object.
func (p CompanyProfile) Object(key string) (map[string]any, bool) {
	m, ok := p[key].(map[string]any)
	return m, ok
}

// Has reports whether the field is present with a truthy value.
func (p CompanyProfile) Has(key string) bool {
	return Truthy(p[key])
}

// Name returns the company name, if any.
func (p CompanyProfile) Name() string {
	return p.String(FieldCompanyName)
}

// Truthy mirrors JSON value truthiness: nil, false, zero numbers and empty
// strings are falsy; every object and array is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
