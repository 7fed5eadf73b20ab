package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/civicauth/internal/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type staticKeys []jwt.KeyInfo

func (s staticKeys) Keys() []jwt.KeyInfo { return s }

func TestKeyCollector(t *testing.T) {
	src := staticKeys{
		{ID: "key-a", Status: jwt.KeyDeprecated, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)},
		{ID: "key-b", Status: jwt.KeyActive, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "key-c", Status: jwt.KeyActive, CreatedAt: time.Now(), Current: true},
	}
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg, src))
	// registrar dos veces no falla
	require.NoError(t, Register(reg, nil))

	expected := `
# HELP signing_keys Claves de firma por estado
# TYPE signing_keys gauge
signing_keys{status="active"} 2
signing_keys{status="deprecated"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "signing_keys"))
}

func TestObserveRotationCounts(t *testing.T) {
	before := testutil.ToFloat64(RotationRuns.WithLabelValues("purge", "ok"))
	ObserveRotation("purge", "ok", 10*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(RotationRuns.WithLabelValues("purge", "ok")))
}
