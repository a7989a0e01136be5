package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xandpulse/models"
)

func TestClassifyVersionType(t *testing.T) {
	cases := map[string]models.VersionType{
		"0.8.0":                 models.VersionMainnet,
		"v0.7.3":                models.VersionMainnet,
		"0.8.0-trynet.20251210": models.VersionTrynet,
		"1.0.0-devnet":          models.VersionDevnet,
		"devnet-build":          models.VersionDevnet,
		"0.8.0-rc1":             models.VersionUnknown,
		"":                      models.VersionUnknown,
		"garbage":               models.VersionUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyVersionType(in), in)
	}
}

func TestCheckVersionStatus(t *testing.T) {
	status, upgrade, severity := CheckVersionStatus("0.8.0", nil)
	assert.Equal(t, "current", status)
	assert.False(t, upgrade)
	assert.Equal(t, "none", severity)

	_, upgrade, severity = CheckVersionStatus("0.7.1", nil)
	assert.True(t, upgrade)
	assert.Equal(t, "critical", severity)

	_, _, severity = CheckVersionStatus("0.8.0-trynet.1", nil)
	assert.Equal(t, "none", severity)

	status, _, _ = CheckVersionStatus("not-a-version", nil)
	assert.Equal(t, "unknown", status)
}
