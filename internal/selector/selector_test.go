// File: internal/selector/selector_test.go
package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantChain   string
		wantOrdinal *int
	}{
		{"bare css", "button.submit", "button.submit", nil},
		{"text engine passthrough", `text="Sign in"`, `text="Sign in"`, nil},
		{"xpath passthrough", "xpath=//div[@id='x']", "xpath=//div[@id='x']", nil},
		{"placeholder sugar", "placeholder=Email", `[placeholder="Email"]`, nil},
		{"placeholder already quoted", `placeholder="Your name"`, `[placeholder="Your name"]`, nil},
		{"chain", `form#login >> text=Submit`, `form#login >> text=Submit`, nil},
		{"trailing ordinal", "li.item >> nth=2", "li.item", intPtr(2)},
		{"negative ordinal", "li.item >> nth=-1", "li.item", intPtr(-1)},
		{"mid-chain nth kept", "ul >> nth=0 >> li", "ul >> nth=0 >> li", nil},
		{"chain with placeholder and ordinal", "form >> placeholder=City >> nth=0", `form >> [placeholder="City"]`, intPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChain, q.Chain)
			if tt.wantOrdinal == nil {
				assert.Nil(t, q.Ordinal)
			} else {
				require.NotNil(t, q.Ordinal)
				assert.Equal(t, *tt.wantOrdinal, *q.Ordinal)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"empty chain segment", "div >>  >> span"},
		{"non-integer ordinal", "li >> nth=first"},
		{"ordinal only", "nth=3"},
		{"negative mid-chain ordinal", "ul >> nth=-1 >> li"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestErrorMessages(t *testing.T) {
	nf := &NotFoundError{Selector: "button.missing"}
	assert.Contains(t, nf.Error(), "button.missing")

	idx := 4
	nfIdx := &NotFoundError{Selector: "li.item", Ordinal: &idx}
	assert.Contains(t, nfIdx.Error(), "index 4")

	sv := &StrictViolationError{Selector: "a", Count: 12}
	assert.Contains(t, sv.Error(), "12")
	assert.Contains(t, sv.Error(), "nth=")
}
