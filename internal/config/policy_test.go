package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		Compliance: ComplianceConfig{ExpiringWindowDays: 30},
		Quota:      QuotaConfig{PerEntityPerHour: 10, PerOrgPerMonth: 500},
	}
}

func TestPolicyHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewPolicyHolder(testConfig(), zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 30, policy.ExpiringWindowDays)
	assert.Equal(t, 10, policy.Quota.PerEntityPerHour)
	assert.Equal(t, 500, policy.Quota.PerOrgPerMonth)
	assert.Equal(t, 30*24*time.Hour, policy.ExpiringWindow())
}

func TestPolicyHolderReadsFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compliance.yml")
	content := "compliance:\n  expiringWindowDays: 45\n  quota:\n    perOrgPerMonth: 1000\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := testConfig()
	cfg.Compliance.PolicyFile = path

	holder, err := NewPolicyHolder(cfg, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 45, policy.ExpiringWindowDays)
	assert.Equal(t, 1000, policy.Quota.PerOrgPerMonth)
	assert.Equal(t, 10, policy.Quota.PerEntityPerHour)
}

func TestPolicyHolderRejectsInvalidDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Quota.PerOrgPerMonth = 0

	_, err := NewPolicyHolder(cfg, zap.NewNop())
	assert.Error(t, err)
}
