package env

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func find(envs []string, key string) (string, bool) {
	for _, kv := range envs {
		if strings.HasPrefix(kv, key+"=") {
			return strings.TrimPrefix(kv, key+"="), true
		}
	}
	return "", false
}

func TestMergeAppliesOverrides(t *testing.T) {
	t.Setenv("SPEECHD_ENV_TEST_BASE", "from-os")

	out := Merge([]string{"PAUSE_SECONDS=0", "SPEECHD_ENV_TEST_BASE=override"})

	v, ok := find(out, "PAUSE_SECONDS")
	assert.True(t, ok)
	assert.Equal(t, "0", v)

	v, ok = find(out, "SPEECHD_ENV_TEST_BASE")
	assert.True(t, ok)
	assert.Equal(t, "override", v)
}

func TestMergeExpandsVariables(t *testing.T) {
	t.Setenv("SPEECHD_ENV_TEST_HOME", "/srv/speech")

	out := Merge([]string{"MODEL_DIR=${SPEECHD_ENV_TEST_HOME}/models"})

	v, ok := find(out, "MODEL_DIR")
	assert.True(t, ok)
	assert.Equal(t, "/srv/speech/models", v)
}

func TestMergeSkipsMalformedEntries(t *testing.T) {
	out := Merge([]string{"NOVALUE", "=empty-key", "OK=1"})
	_, ok := find(out, "NOVALUE")
	assert.False(t, ok)
	v, ok := find(out, "OK")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}
