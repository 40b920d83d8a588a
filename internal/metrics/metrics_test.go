package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// Second Register is a no-op.
	require.NoError(t, Register(reg))

	IncOperation("install", true)
	IncOperation("start", false)
	ObserveOperationDuration("install", 42.5)
	IncProbe(true)
	IncProbe(false)
	SetServerUp(true)
	IncScriptLine("start")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["speechd_lifecycle_operations_total"])
	assert.True(t, names["speechd_lifecycle_operation_duration_seconds"])
	assert.True(t, names["speechd_health_probes_total"])
	assert.True(t, names["speechd_server_up"])
	assert.True(t, names["speechd_script_output_lines_total"])
}

func TestHandlerNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}
