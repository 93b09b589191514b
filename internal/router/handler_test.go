package router_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/insight/internal/router"
	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/routes"
)

func analysisMux(t *testing.T, f *fixture) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	routes.Register(mux, router.NewHandler(f.router, discard()).Routes())
	return mux
}

func TestHandler_Analyze(t *testing.T) {
	f := newFixture(t, sources.Coupa)
	mux := analysisMux(t, f)

	tests := []struct {
		name      string
		body      string
		want      int
		wantAgent string
	}{
		{"classified", `{"query":"top suppliers"}`, http.StatusOK, "coupa"},
		{"explicit source", `{"query":"top suppliers","data_source":"baan"}`, http.StatusOK, "baan"},
		{"empty query", `{"query":"  "}`, http.StatusBadRequest, ""},
		{"unknown source", `{"query":"q","data_source":"sap"}`, http.StatusBadRequest, ""},
		{"malformed", `{`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/analysis", strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.wantAgent == "" {
				return
			}

			var res router.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.True(t, res.Success)
			assert.Equal(t, tt.wantAgent, res.AgentUsed)
		})
	}
}

func TestHandler_Stream(t *testing.T) {
	f := newFixture(t, sources.Baan)
	mux := analysisMux(t, f)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analysis/stream", strings.NewReader(`{"query":"late orders"}`))
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var names []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	assert.Equal(t, []string{"progress", "final"}, names)
}
