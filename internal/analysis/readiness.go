package analysis

import "github.com/sells-group/profile-cli/internal/model"

// minReadyKeys is the key count a profile must exceed to be accepted.
const minReadyKeys = 5

// readyAnchors are the fields of which at least one must be truthy.
var readyAnchors = []string{
	model.FieldCompanyName,
	model.FieldBusinessOverview,
	model.FieldFinancialOverview,
}

// IsReady reports whether a poll output object is a completed profile. The
// remote service has no explicit completion flag, so a payload is accepted
// once it has more than five keys and at least one anchor field is truthy.
// Payloads that only echo the request are rejected.
func IsReady(output map[string]any) bool {
	if len(output) <= minReadyKeys {
		return false
	}
	for _, k := range readyAnchors {
		if model.Truthy(output[k]) {
			return true
		}
	}
	return false
}
