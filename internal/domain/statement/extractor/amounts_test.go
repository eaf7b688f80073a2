package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amountValues(ms []AmountMatch) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Value.String()
	}
	return out
}

func TestFindAmounts(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"bank line", "2024-10-01 Salary 3,000.00 53,000.00", []string{"3000.00", "53000.00"}},
		{"currency prefix", "交易金額 NT$1,234 元", []string{"1234.00"}},
		{"yuan suffix", "本期應繳總額 7,483元", []string{"7483.00"}},
		{"negative forms", "-1,000.00 (250.50) NT$-30", []string{"-1000.00", "-250.50", "-30.00"}},
		{"percent excluded", "循環信用利率 8.62% fee 15 %", nil},
		{"identifiers excluded", "Account 0123456789012 ref A123 time 12:30", nil},
		{"masked card excluded", "card ...1234", nil},
		{"fraction excluded", "(14/24期) TWD 3,908", []string{"3908.00"}},
		{"trailing punctuation", "Total 1,200.", []string{"1200.00"}},
		{"rounds to cents", "fx 12.345", []string{"12.35"}},
		{"foreign amount with slash", "JPY 1000.00/ JPN 221", []string{"221.00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindAmounts(tt.line)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, amountValues(got))
		})
	}
}

func TestFindAmounts_SpanCoversToken(t *testing.T) {
	line := "Salary 3,000.00"
	got := FindAmounts(line)
	require.Len(t, got, 1)
	assert.Equal(t, "3,000.00", line[got[0].Start:got[0].End])
}

func TestFindPercents(t *testing.T) {
	got := FindPercents("循環信用利率 8.62% 帳單分期利率 5.62 %")
	assert.Equal(t, []string{"8.62", "5.62"}, amountValues(got))
}

func TestAnchorSet_EarliestThenLongest(t *testing.T) {
	set := NewAnchorSet(
		Anchor{"due", []string{"應繳金額"}},
		Anchor{"minimum", []string{"最低應繳金額"}},
	)
	hits := set.Find("最低應繳金額 1,000 應繳金額 7,483")
	require.Len(t, hits, 2)
	assert.Equal(t, "minimum", hits[0].Role)
	assert.Equal(t, "due", hits[1].Role)
}

func TestResolve(t *testing.T) {
	set := NewAnchorSet(
		Anchor{RoleOpeningBalance, []string{"opening balance"}},
		Anchor{RoleClosingBalance, []string{"closing balance"}},
	)

	t.Run("same line, nearest preceding anchor", func(t *testing.T) {
		res := Resolve([]string{"Opening Balance 50,000.00 Closing Balance 48,500.00"}, set, FindAmounts, withoutDates)
		assert.Equal(t, "50000.00", res.Values[RoleOpeningBalance].Value.String())
		assert.Equal(t, "48500.00", res.Values[RoleClosingBalance].Value.String())
	})

	t.Run("label line feeds the next line", func(t *testing.T) {
		res := Resolve([]string{"Opening Balance   Closing Balance", "50,000.00   48,500.00"}, set, FindAmounts, withoutDates)
		assert.Equal(t, "50000.00", res.Values[RoleOpeningBalance].Value.String())
		assert.Equal(t, "48500.00", res.Values[RoleClosingBalance].Value.String())
		assert.True(t, res.Lines[0])
		assert.True(t, res.Lines[1])
	})

	t.Run("window is one line", func(t *testing.T) {
		res := Resolve([]string{"Opening Balance", "", "50,000.00"}, set, FindAmounts, withoutDates)
		assert.Empty(t, res.Values)
	})

	t.Run("dated lines are not value lines", func(t *testing.T) {
		res := Resolve([]string{"Date Description Closing Balance", "2024-10-01 Salary 3,000.00 53,000.00"}, set, FindAmounts, withoutDates)
		assert.Empty(t, res.Values)
		assert.False(t, res.Lines[1])
	})

	t.Run("unanchored tokens are dropped and first value wins", func(t *testing.T) {
		res := Resolve([]string{"99.00 Opening Balance 1.00", "Opening Balance 2.00"}, set, FindAmounts, withoutDates)
		require.Len(t, res.Values, 1)
		assert.Equal(t, "1.00", res.Values[RoleOpeningBalance].Value.String())
	})
}
