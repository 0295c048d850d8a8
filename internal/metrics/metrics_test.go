package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := NewUnregistered()
	m.StepsTotal.WithLabelValues("ok").Add(3)
	m.PageCount.Set(7)

	require.Equal(t, 3.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("ok")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "pagestash_maintainer_steps_total{result=\"ok\"} 3"), body)
	require.True(t, strings.Contains(body, "pagestash_maintainer_pages 7"), body)
}
