package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/insight-agent/insight"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	suite.tempDir = suite.T().TempDir()

	// Run from an empty directory so no stray config.yaml is picked up
	err = os.Chdir(suite.tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	assert.Equal(suite.T(), internal.DefaultDatabaseDriver, cfg.Database.Driver)
	assert.Equal(suite.T(), internal.DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(suite.T(), internal.DefaultOutputDir, cfg.App.OutputDir)
	assert.Equal(suite.T(), 8, cfg.Agent.MaxSteps)
	assert.Equal(suite.T(), 10, cfg.Agent.HistoryWindow)
	assert.Equal(suite.T(), 50, cfg.Agent.MaxHistory)
	assert.Equal(suite.T(), 60*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(suite.T(), 0, cfg.Harness.RetryCount)
	assert.Equal(suite.T(), time.Second, cfg.Harness.RateLimitRefillRate)
	assert.InDelta(suite.T(), 0.1, cfg.LLM.Temperature, 1e-6)
	assert.Equal(suite.T(), []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(suite.T(), 1000, cfg.Server.MaxSessions)
	assert.Equal(suite.T(), 30*time.Minute, cfg.Server.SessionIdle)
	assert.Empty(suite.T(), ConfigFileUsed())
}

func (suite *ConfigTestSuite) TestLoadConfigWithFile() {
	configContent := `
database:
  driver: "sqlite"
  path: "./sales.db"
llm:
  provider: "ollama"
  model: "qwen2.5"
agent:
  max_steps: 4
  tool_timeout: "5s"
harness:
  retry_count: 2
`
	configPath := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configPath)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "sqlite", cfg.Database.Driver)
	assert.Equal(suite.T(), "./sales.db", cfg.Database.Path)
	assert.Equal(suite.T(), "ollama", cfg.LLM.Provider)
	assert.Equal(suite.T(), "qwen2.5", cfg.LLM.Model)
	assert.Equal(suite.T(), 4, cfg.Agent.MaxSteps)
	assert.Equal(suite.T(), 5*time.Second, cfg.Agent.ToolTimeout)
	assert.Equal(suite.T(), 2, cfg.Harness.RetryCount)

	// Untouched keys keep their defaults
	assert.Equal(suite.T(), 50, cfg.Agent.MaxHistory)
	assert.Equal(suite.T(), configPath, ConfigFileUsed())
}

func (suite *ConfigTestSuite) TestLoadConfigFromWorkingDirectory() {
	err := os.WriteFile(filepath.Join(suite.tempDir, "config.yaml"), []byte("agent:\n  history_window: 4\n"), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4, cfg.Agent.HistoryWindow)
}

func (suite *ConfigTestSuite) TestEnvironmentOverrides() {
	suite.T().Setenv("AGENT_MAX_STEPS", "3")
	suite.T().Setenv("API_KEY", "sk-test")
	suite.T().Setenv("BASE_URL", "https://gateway.example/v1")

	cfg, err := LoadConfig("")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 3, cfg.Agent.MaxSteps)
	assert.Equal(suite.T(), "sk-test", cfg.LLM.APIKey)
	assert.Equal(suite.T(), "https://gateway.example/v1", cfg.LLM.BaseURL)
}

func (suite *ConfigTestSuite) TestInvalidConfigFile() {
	configPath := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configPath, []byte("agent: [unterminated"), 0o644)
	require.NoError(suite.T(), err)

	_, err = LoadConfig(configPath)
	assert.Error(suite.T(), err)
}

func (suite *ConfigTestSuite) TestWatchWithoutFile() {
	_, err := LoadConfig("")
	require.NoError(suite.T(), err)

	err = Watch(nil, nil)
	assert.ErrorIs(suite.T(), err, ErrNoConfigFile)
}

func (suite *ConfigTestSuite) TestLoadConfigReturnsIndependentValues() {
	first, err := LoadConfig("")
	require.NoError(suite.T(), err)
	first.Agent.MaxSteps = 99
	first.App.LogLevel = "trace"

	second, err := LoadConfig("")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 8, second.Agent.MaxSteps)
	assert.Equal(suite.T(), "info", second.App.LogLevel)
}
