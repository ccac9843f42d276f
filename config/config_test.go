package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/incendiarybean/proxy-address-blocker/logger"
)

func TestLoad_Defaults(t *testing.T) {
	appConfig := Load()

	assert.Equal(t, uint16(8000), appConfig.Port)
	assert.Equal(t, uint16(8001), appConfig.ControlPort)
	assert.Equal(t, "info", appConfig.LogLevel)
	assert.Equal(t, "text", appConfig.LogFormat)
	assert.False(t, appConfig.FilterEnabled)
	assert.Equal(t, "deny", appConfig.FilterPolarity)
	assert.Equal(t, "*", appConfig.AllowedOrigin)
}

func TestLoad_ReadsPrefixedEnvironmentVariables(t *testing.T) {
	os.Setenv("PROXY_PORT", "9090") //nolint:errcheck
	os.Setenv("PROXY_LOG_LEVEL", "debug") //nolint:errcheck
	defer os.Unsetenv("PROXY_PORT")       //nolint:errcheck
	defer os.Unsetenv("PROXY_LOG_LEVEL")  //nolint:errcheck

	appConfig := Load()

	assert.Equal(t, uint16(9090), appConfig.Port)
	assert.Equal(t, "debug", appConfig.LogLevel)
}

func TestNewLogger_FallsBackOnUnknownLevel(t *testing.T) {
	appConfig := &Config{LogLevel: "not-a-level", LogFormat: "json"}
	log := appConfig.NewLogger()
	defer log.Sync()

	assert.Equal(t, logger.LevelInfo, log.CurrentLevel())
}
