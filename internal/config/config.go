package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FamilyMember describes one household member for analysis context.
type FamilyMember struct {
	Name  string `json:"name"`
	Age   int    `json:"age,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// TimingPreferences carry booking lead times the model is told to honor.
type TimingPreferences struct {
	SitterLeadDays     int `json:"sitter_lead_days,omitempty"`
	FlightLeadDays     int `json:"flight_lead_days,omitempty"`
	HotelLeadDays      int `json:"hotel_lead_days,omitempty"`
	DrivingRadiusMiles int `json:"driving_radius_miles,omitempty"`
}

// Household is the free-form context threaded into every analysis prompt.
type Household struct {
	FamilyMembers []FamilyMember    `json:"family_members,omitempty"`
	HomeLocation  string            `json:"home_location,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	Timing        TimingPreferences `json:"timing,omitempty"`
}

// Provider configures the model endpoint. Unset fields fall back to the
// client's defaults (OpenAI base URL, gpt-4o-mini, temperature 0.2).
type Provider struct {
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model,omitempty"`
	APIKeyEnv   string  `json:"api_key_env,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// APIKey resolves the provider API key from the configured environment
// variable. The key itself never lives in the config file.
func (p Provider) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Feed is one ICS calendar subscription.
type Feed struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Config holds application configuration.
type Config struct {
	// Household context for prompt construction
	Household Household `json:"household,omitempty"`

	// Provider is the model endpoint configuration
	Provider Provider `json:"provider,omitempty"`

	// Feeds lists the ICS calendars to analyze
	Feeds []Feed `json:"feeds,omitempty"`

	// LookaheadDays bounds both calendar expansion and the task window
	LookaheadDays int `json:"lookahead_days,omitempty"`

	// PaceMs is the delay between consecutive analysis calls in milliseconds
	PaceMs int `json:"pace_ms,omitempty"`

	// CooldownSeconds is the pause before retrying a rate-limited call
	CooldownSeconds int `json:"cooldown_seconds,omitempty"`

	// WebBind/WebPort/RefreshCron configure `prepd serve`. RefreshCron is a
	// cron expression for periodic feed re-analysis; empty disables it.
	WebBind     string `json:"web_bind,omitempty"`
	WebPort     int    `json:"web_port,omitempty"`
	RefreshCron string `json:"refresh_cron,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.prepd/exports require either being in this list or
	// AllowUnsafePaths=true. Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks
	// still apply). Use with caution.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are ignored.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// All tools belonging to disabled types are excluded from registration.
	// Known types: "task", "event". Unknown type names are ignored.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: Provider{
			APIKeyEnv: "OPENAI_API_KEY",
		},
		LookaheadDays:   30,
		PaceMs:          1500,
		CooldownSeconds: 60,
		WebBind:         "127.0.0.1",
		WebPort:         8707,
	}
}

// Pace returns the inter-call delay as a duration.
func (c *Config) Pace() time.Duration {
	return time.Duration(c.PaceMs) * time.Millisecond
}

// Cooldown returns the rate-limit pause as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Lookahead returns the lookahead window as a duration.
func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.prepd.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File doesn't exist, return zero config
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and
// deduplicated, except FamilyMembers where a non-empty overlay replaces the
// base list outright (merging two family lists would duplicate people).
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Household = mergeHousehold(base.Household, overlay.Household)
	result.Provider = mergeProvider(base.Provider, overlay.Provider)
	result.Feeds = mergeFeeds(base.Feeds, overlay.Feeds)

	result.LookaheadDays = overlay.LookaheadDays
	if result.LookaheadDays == 0 {
		result.LookaheadDays = base.LookaheadDays
	}

	result.PaceMs = overlay.PaceMs
	if result.PaceMs == 0 {
		result.PaceMs = base.PaceMs
	}

	result.CooldownSeconds = overlay.CooldownSeconds
	if result.CooldownSeconds == 0 {
		result.CooldownSeconds = base.CooldownSeconds
	}

	result.WebBind = overlay.WebBind
	if result.WebBind == "" {
		result.WebBind = base.WebBind
	}

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	result.RefreshCron = overlay.RefreshCron
	if result.RefreshCron == "" {
		result.RefreshCron = base.RefreshCron
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func mergeHousehold(base, overlay Household) Household {
	result := Household{}

	result.FamilyMembers = overlay.FamilyMembers
	if len(result.FamilyMembers) == 0 {
		result.FamilyMembers = base.FamilyMembers
	}

	result.HomeLocation = overlay.HomeLocation
	if result.HomeLocation == "" {
		result.HomeLocation = base.HomeLocation
	}

	result.Notes = overlay.Notes
	if result.Notes == "" {
		result.Notes = base.Notes
	}

	result.Timing = mergeTiming(base.Timing, overlay.Timing)

	return result
}

func mergeTiming(base, overlay TimingPreferences) TimingPreferences {
	result := overlay
	if result.SitterLeadDays == 0 {
		result.SitterLeadDays = base.SitterLeadDays
	}
	if result.FlightLeadDays == 0 {
		result.FlightLeadDays = base.FlightLeadDays
	}
	if result.HotelLeadDays == 0 {
		result.HotelLeadDays = base.HotelLeadDays
	}
	if result.DrivingRadiusMiles == 0 {
		result.DrivingRadiusMiles = base.DrivingRadiusMiles
	}
	return result
}

func mergeProvider(base, overlay Provider) Provider {
	result := overlay
	if result.BaseURL == "" {
		result.BaseURL = base.BaseURL
	}
	if result.Model == "" {
		result.Model = base.Model
	}
	if result.APIKeyEnv == "" {
		result.APIKeyEnv = base.APIKeyEnv
	}
	if result.Temperature == 0 {
		result.Temperature = base.Temperature
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = base.MaxTokens
	}
	return result
}

// mergeFeeds combines two feed lists, deduplicating by URL.
func mergeFeeds(a, b []Feed) []Feed {
	seen := make(map[string]bool)
	result := make([]Feed, 0, len(a)+len(b))

	for _, f := range append(append([]Feed{}, a...), b...) {
		url := strings.TrimSpace(f.URL)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		f.URL = url
		result = append(result, f)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
