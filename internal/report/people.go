package report

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

var tenureYears = regexp.MustCompile(`(\d+)\s*years?`)

// Leader is one member of the executive team.
type Leader struct {
	Name                string   `json:"name" yaml:"name"`
	Role                string   `json:"role,omitempty" yaml:"role,omitempty"`
	YearJoined          string   `json:"year_joined,omitempty" yaml:"year_joined,omitempty"`
	Tenure              string   `json:"tenure,omitempty" yaml:"tenure,omitempty"`
	Description         string   `json:"description,omitempty" yaml:"description,omitempty"`
	KeyResponsibilities string   `json:"key_responsibilities,omitempty" yaml:"key_responsibilities,omitempty"`
	PreviousExperience  []string `json:"previous_experience,omitempty" yaml:"previous_experience,omitempty"`
	LinkedInURL         string   `json:"linkedin_url,omitempty" yaml:"linkedin_url,omitempty"`
}

// Leadership is the derived view of Key_Management.
type Leadership struct {
	Leaders []Leader `json:"leaders" yaml:"leaders"`
	// AverageTenureYears is the rounded mean of the years found in each
	// leader's tenure text. Leaders without a match count as zero.
	AverageTenureYears int `json:"average_tenure_years" yaml:"average_tenure_years"`
}

// BuildLeadership reads the leadership list of a Key_Management object.
func BuildLeadership(data map[string]any) *Leadership {
	l := &Leadership{}
	total := 0
	for _, m := range objects(data["leadership"]) {
		leader := Leader{
			Name:                text(m["name"]),
			Role:                text(m["role"]),
			YearJoined:          text(m["year_joined"]),
			Tenure:              text(m["tenure"]),
			Description:         text(m["description"]),
			KeyResponsibilities: text(m["key_responsibilities"]),
			PreviousExperience:  stringList(m["previous_experience"]),
			LinkedInURL:         text(m["linkedin_url"]),
		}
		total += TenureYears(leader.Tenure)
		l.Leaders = append(l.Leaders, leader)
	}
	if n := len(l.Leaders); n > 0 {
		l.AverageTenureYears = int(math.Round(float64(total) / float64(n)))
	}
	return l
}

// TenureYears extracts the first "<n> year(s)" figure from a tenure string.
func TenureYears(tenure string) int {
	m := tenureYears.FindStringSubmatch(tenure)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Customer is one key customer.
type Customer struct {
	CompanyName    string `json:"company_name" yaml:"company_name"`
	Industry       string `json:"industry" yaml:"industry"`
	CompanyWebsite string `json:"company_website,omitempty" yaml:"company_website,omitempty"`
}

// IndustryShare is the share of key customers in one industry.
type IndustryShare struct {
	Industry   string     `json:"industry" yaml:"industry"`
	Count      int        `json:"count" yaml:"count"`
	Percentage float64    `json:"percentage" yaml:"percentage"`
	Customers  []Customer `json:"customers" yaml:"customers"`
}

// Customers is the derived view of Key_Customers.
type Customers struct {
	Total      int             `json:"total" yaml:"total"`
	Industries []IndustryShare `json:"industries" yaml:"industries"`
}

const otherIndustry = "Other"

// BuildCustomers groups the details list of a Key_Customers object by
// industry. Shares are ordered by percentage descending; ties keep the order
// in which the industry first appears.
func BuildCustomers(data map[string]any) *Customers {
	details := objects(data["details"])
	c := &Customers{Total: len(details)}

	index := make(map[string]int)
	for _, m := range details {
		cust := Customer{
			CompanyName:    text(m["company_name"]),
			Industry:       text(m["industry"]),
			CompanyWebsite: text(m["company_website"]),
		}
		if cust.Industry == "" {
			cust.Industry = otherIndustry
		}
		i, ok := index[cust.Industry]
		if !ok {
			i = len(c.Industries)
			index[cust.Industry] = i
			c.Industries = append(c.Industries, IndustryShare{Industry: cust.Industry})
		}
		c.Industries[i].Count++
		c.Industries[i].Customers = append(c.Industries[i].Customers, cust)
	}

	for i := range c.Industries {
		c.Industries[i].Percentage = float64(c.Industries[i].Count) / float64(c.Total) * 100
	}
	sort.SliceStable(c.Industries, func(i, j int) bool {
		return c.Industries[i].Percentage > c.Industries[j].Percentage
	})
	return c
}
