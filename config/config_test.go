package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPassword(t *testing.T) {
	assert.Equal(t, "host=db password=***** dbname=x", maskPassword("host=db password=secret dbname=x"))
	assert.Equal(t, "host=db password=*****", maskPassword("host=db password=secret"))
	assert.Equal(t, "host=db", maskPassword("host=db"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("HUB_TEST_INT", "42")
	t.Setenv("HUB_TEST_BAD_INT", "forty")
	t.Setenv("HUB_TEST_BOOL", "true")
	t.Setenv("HUB_TEST_DURATION", "90s")
	t.Setenv("HUB_TEST_LIST", "http://a.com, http://b.com,,")

	assert.Equal(t, 42, getEnvAsInt("HUB_TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("HUB_TEST_BAD_INT", 1))
	assert.Equal(t, 7, getEnvAsInt("HUB_TEST_MISSING", 7))
	assert.True(t, getEnvAsBool("HUB_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("HUB_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, getEnvAsList("HUB_TEST_LIST", nil))
}

func TestGetEnv_WarnsWithoutDotEnv(t *testing.T) {
	hook := test.NewGlobal()
	defer logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	logrus.SetLevel(logrus.InfoLevel)

	loaded := envLoaded
	defer func() { envLoaded = loaded }()

	envLoaded = false
	assert.Equal(t, "", getEnv("HUB_TEST_UNSET", ""))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "HUB_TEST_UNSET")

	hook.Reset()
	assert.Equal(t, "x", getEnv("HUB_TEST_UNSET", "x"))
	assert.Equal(t, 3, getEnvAsInt("HUB_TEST_UNSET", 3))
	assert.Empty(t, hook.AllEntries(), "fallbacks and typed lookups stay quiet")

	envLoaded = true
	getEnv("HUB_TEST_UNSET", "")
	assert.Empty(t, hook.AllEntries(), "a loaded .env silences the warning")
}

func TestLoadConfig_HTTPSource(t *testing.T) {
	t.Setenv("LEAD_SOURCE", "http")
	t.Setenv("LEAD_SOURCE_URL", "http://leads.internal")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DIGEST_INTERVAL", "5m")

	require.NoError(t, LoadConfig())
	assert.Equal(t, LeadSourceHTTP, AppConfig.LeadSource.Kind)
	assert.Equal(t, "http://leads.internal", AppConfig.LeadSource.URL)
	assert.Equal(t, 5*time.Minute, AppConfig.Digest.Interval)
	assert.Equal(t, 30, AppConfig.Digest.WindowDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "db source needs password",
			cfg:     Config{LeadSource: LeadSourceConfig{Kind: LeadSourceDB}, JWTSecret: "x"},
			wantErr: "DB_PASSWORD",
		},
		{
			name:    "http source needs url",
			cfg:     Config{LeadSource: LeadSourceConfig{Kind: LeadSourceHTTP}, JWTSecret: "x"},
			wantErr: "LEAD_SOURCE_URL",
		},
		{
			name:    "unknown source",
			cfg:     Config{LeadSource: LeadSourceConfig{Kind: "csv"}},
			wantErr: "unknown LEAD_SOURCE",
		},
		{
			name:    "jwt secret required",
			cfg:     Config{DBPassword: "p", LeadSource: LeadSourceConfig{Kind: LeadSourceDB}},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "auth cannot be disabled in production",
			cfg:     Config{Environment: "production", AuthDisabled: true, DBPassword: "p", LeadSource: LeadSourceConfig{Kind: LeadSourceDB}},
			wantErr: "AUTH_DISABLED",
		},
		{
			name: "valid",
			cfg:  Config{DBPassword: "p", JWTSecret: "x", LeadSource: LeadSourceConfig{Kind: LeadSourceDB}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
