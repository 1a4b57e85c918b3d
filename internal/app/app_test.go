package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicedesk/internal/observability"
	"github.com/odyssey-erp/invoicedesk/jobs"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTOSAVE_QUIET_WINDOW", "1s")
	require.NoError(t, os.Unsetenv("AUTOSAVE_QUIET_WINDOW"))
	t.Setenv("AUTOSAVE_SERIALIZE_COMMITS", "true")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.AutosaveQuietWindow)
	require.Equal(t, 10*time.Second, cfg.AutosaveCommitTimeout)
	require.True(t, cfg.AutosaveSerializeCommits)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsZeroQuietWindow(t *testing.T) {
	t.Setenv("AUTOSAVE_QUIET_WINDOW", "0s")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	require.Equal(t, "INFO", parseLevel(nil).String())
	require.Equal(t, "INFO", parseLevel(&Config{LogLevel: "loud"}).String())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("INVOICEDESK_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv("INVOICEDESK_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:     &Config{AppEnv: "production"},
		JobHandler: jobs.NewHandler(nil, nil),
		Metrics:    observability.NewMetrics(),
	})

	for _, path := range []string{"/healthz", "/jobs/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, path)
		require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"), path)
	}
}
