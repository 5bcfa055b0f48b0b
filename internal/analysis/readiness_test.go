package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReady(t *testing.T) {
	tests := []struct {
		name   string
		output map[string]any
		want   bool
	}{
		{
			name:   "empty",
			output: map[string]any{},
			want:   false,
		},
		{
			name: "five keys with all anchors",
			output: map[string]any{
				"Company_Name": "Acme", "Business_Overview": "x", "Financial_Overview": map[string]any{"a": 1},
				"d": 1, "e": 2,
			},
			want: false,
		},
		{
			name:   "six keys with company name",
			output: map[string]any{"Company_Name": "Acme", "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   true,
		},
		{
			name:   "six keys with business overview",
			output: map[string]any{"Business_Overview": "text", "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   true,
		},
		{
			name:   "six keys with financial overview object",
			output: map[string]any{"Financial_Overview": map[string]any{}, "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   true,
		},
		{
			name:   "six keys without anchors",
			output: map[string]any{"a": "x", "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   false,
		},
		{
			name: "anchors present but falsy",
			output: map[string]any{
				"Company_Name": "", "Business_Overview": nil, "Financial_Overview": false,
				"d": 1, "e": 2, "f": 3,
			},
			want: false,
		},
		{
			name:   "zero number anchor is falsy",
			output: map[string]any{"Company_Name": float64(0), "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   false,
		},
		{
			name:   "array anchor is truthy",
			output: map[string]any{"Company_Name": []any{}, "b": 1, "c": 2, "d": 3, "e": 4, "f": 5},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReady(tt.output))
		})
	}
}

func TestIsReady_NeverAcceptsFiveOrFewerKeys(t *testing.T) {
	for n := 0; n <= 5; n++ {
		out := map[string]any{"Company_Name": "Acme", "Business_Overview": "x", "Financial_Overview": "y"}
		for i := len(out); i < n; i++ {
			out[fmt.Sprintf("k%d", i)] = i
		}
		for len(out) > n {
			for k := range out {
				delete(out, k)
				break
			}
		}
		assert.False(t, IsReady(out), "accepted %d keys", n)
	}
}

func TestIsReady_NeverAcceptsWithoutAnchors(t *testing.T) {
	for n := 6; n <= 20; n++ {
		out := make(map[string]any, n)
		for i := 0; i < n; i++ {
			out[fmt.Sprintf("Field_%d", i)] = "value"
		}
		assert.False(t, IsReady(out), "accepted %d keys without anchors", n)
	}
}
