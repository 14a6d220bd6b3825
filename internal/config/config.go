// Package config loads devpulse configuration from file, environment
// variables, and defaults.
package config

import (
	"errors"
	"path/filepath"
)

// Configuration errors. Credentials are validated by the operation
// that needs them, not at load time, so a serve-only deployment does
// not require fetch credentials.
var (
	ErrMissingGitHubToken     = errors.New("config: github token is not set")
	ErrMissingJiraCredentials = errors.New("config: jira email or api token is not set")
	ErrMissingJiraBaseURL     = errors.New("config: jira base url is not set")
	ErrNoOrganizations        = errors.New("config: no github organizations configured")
)

// Default configuration values.
const (
	DefaultDataDir          = "data"
	DefaultGitHubGraphQLURL = "https://api.github.com/graphql"
	DefaultFetchSince       = "2023-01-01"
	DefaultMappingThreshold = 0.7
	DefaultServerAddr       = ":8080"
)

// DefaultMappingDenyList filters bot and service accounts out of the
// identity mapping pass.
var DefaultMappingDenyList = []string{"[bot]", "copilot", "dependabot", "devops-"}

// DefaultMappingSuffixes are the org-specific username suffixes
// stripped during identity normalization, longest variants first so
// "echang-gcmlp" strips to "echang" rather than "echang-".
var DefaultMappingSuffixes = []string{"-gcmlp", "-gcm", "gcmlp", "gcm"}

// Config is the top-level configuration struct for devpulse.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Jira    JiraConfig    `mapstructure:"jira"`
	Mapping MappingConfig `mapstructure:"mapping"`
	Server  ServerConfig  `mapstructure:"server"`
}

// DataConfig holds the cache and export directory layout.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// CommitCacheDir is the raw commit event cache directory.
func (d DataConfig) CommitCacheDir() string {
	return filepath.Join(d.Dir, "raw", "commits")
}

// PRCacheDir is the raw pull request event cache directory.
func (d DataConfig) PRCacheDir() string {
	return filepath.Join(d.Dir, "raw", "prs")
}

// IssueCacheDir is the raw tracker issue cache directory.
func (d DataConfig) IssueCacheDir() string {
	return filepath.Join(d.Dir, "raw", "issues")
}

// DashboardDir is the directory holding the dashboard snapshot table.
func (d DataConfig) DashboardDir() string {
	return filepath.Join(d.Dir, "cache")
}

// ExportsDir is the directory holding CSV/JSON exports.
func (d DataConfig) ExportsDir() string {
	return filepath.Join(d.Dir, "exports")
}

// GitHubConfig holds source-control API settings. Token comes from
// the DEVPULSE_GITHUB_TOKEN environment variable in deployments.
type GitHubConfig struct {
	Token         string   `mapstructure:"token"`
	GraphQLURL    string   `mapstructure:"graphql_url"`
	Organizations []string `mapstructure:"organizations"`
	Since         string   `mapstructure:"since"`
}

// Validate checks the settings required for fetching from GitHub.
func (g GitHubConfig) Validate() error {
	if g.Token == "" {
		return ErrMissingGitHubToken
	}

	if len(g.Organizations) == 0 {
		return ErrNoOrganizations
	}

	return nil
}

// JiraConfig holds issue-tracker API settings.
type JiraConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`
	APIToken string `mapstructure:"api_token"`
	Since    string `mapstructure:"since"`
}

// Validate checks the settings required for fetching from Jira.
func (j JiraConfig) Validate() error {
	if j.BaseURL == "" {
		return ErrMissingJiraBaseURL
	}

	if j.Email == "" || j.APIToken == "" {
		return ErrMissingJiraCredentials
	}

	return nil
}

// MappingConfig holds identity mapping settings.
type MappingConfig struct {
	Threshold float64  `mapstructure:"threshold"`
	Suffixes  []string `mapstructure:"suffixes"`
	DenyList  []string `mapstructure:"deny_list"`
}

// ServerConfig holds HTTP server settings. An empty AdminAPIKey
// disables the admin refresh endpoint.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
