package sources_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/insight/internal/sources"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    sources.DataSource
		wantErr bool
	}{
		{"coupa", sources.Coupa, false},
		{" BAAN ", sources.Baan, false},
		{"Combined", sources.Combined, false},
		{"sap", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := sources.Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, sources.ErrUnknownSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataSource_UnmarshalJSON(t *testing.T) {
	var v struct {
		Source sources.DataSource `json:"source"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"source":"Coupa"}`), &v))
	assert.Equal(t, sources.Coupa, v.Source)

	err := json.Unmarshal([]byte(`{"source":"sap"}`), &v)
	assert.ErrorIs(t, err, sources.ErrUnknownSource)
}

func TestLookup(t *testing.T) {
	s, err := sources.Lookup(sources.Baan)
	require.NoError(t, err)
	assert.Equal(t, "public.baan_purchase_orders", s.QualifiedTable())

	_, err = sources.Lookup(sources.Combined)
	assert.ErrorIs(t, err, sources.ErrNoSchema)
}

func TestRoute(t *testing.T) {
	s, err := sources.Lookup(sources.Coupa)
	require.NoError(t, err)

	t.Run("redirects foreign tables", func(t *testing.T) {
		sql, redirects, err := s.Route("SELECT supplier_name FROM baan_purchase_orders")
		require.NoError(t, err)
		assert.Equal(t, "SELECT supplier_name FROM public.coupa_invoice_lines", sql)
		require.Len(t, redirects, 1)
		assert.Equal(t, "baan_purchase_orders", redirects[0].From)
	})

	t.Run("leaves extract and ctes alone", func(t *testing.T) {
		in := "WITH totals AS (SELECT EXTRACT(YEAR FROM invoice_date) AS y FROM coupa_invoice_lines) SELECT * FROM totals"
		sql, redirects, err := s.Route(in)
		require.NoError(t, err)
		assert.Equal(t, in, sql)
		assert.Empty(t, redirects)
	})

	t.Run("rejects writes", func(t *testing.T) {
		_, _, err := s.Route("DELETE FROM coupa_invoice_lines")
		assert.ErrorIs(t, err, sources.ErrNotReadOnly)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, _, err := s.Route("  ;")
		assert.ErrorIs(t, err, sources.ErrEmptyQuery)
	})
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"fenced", "Here:\n```sql\nSELECT 1;\n```", "SELECT 1"},
		{"inline statement", "Use SELECT total FROM t; for this.", "SELECT total FROM t"},
		{"raw", "SELECT 2;", "SELECT 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sources.ExtractSQL(tt.text))
		})
	}
}

func TestStripSQL(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		removed []string
	}{
		{
			name:    "fenced block",
			text:    "Spend is concentrated.\n```sql\nSELECT * FROM coupa_invoice_lines\n```",
			want:    "Spend is concentrated.",
			removed: []string{"coupa_invoice_lines"},
		},
		{
			name:    "statement line",
			text:    "Spend is concentrated.\nSELECT supplier_name FROM coupa_invoice_lines\nGROUP BY supplier_name",
			want:    "Spend is concentrated.",
			removed: []string{"SELECT"},
		},
		{
			name:    "backticked fragment",
			text:    "Totals come from `SELECT SUM(total_amount) FROM coupa_invoice_lines`.",
			removed: []string{"SELECT"},
		},
		{
			name:    "bare statement inside a sentence",
			text:    "Spend is concentrated. I ran SELECT supplier_name, SUM(total_amount) FROM coupa_invoice_lines GROUP BY supplier_name; to confirm it.",
			removed: []string{"SELECT", "coupa_invoice_lines", "GROUP BY"},
		},
		{
			name:    "bare star statement at sentence end",
			text:    "The data came from SELECT * FROM baan_purchase_orders. Acme leads.",
			want:    "The data came from Acme leads.",
			removed: []string{"SELECT", "baan_purchase_orders"},
		},
		{
			name: "prose using the word select",
			text: "We should select suppliers from the preferred list before renewal.",
			want: "We should select suppliers from the preferred list before renewal.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sources.StripSQL(tt.text)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			for _, r := range tt.removed {
				assert.NotContains(t, got, r)
			}
		})
	}
}
