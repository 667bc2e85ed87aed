package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config models comassist.yml.
type Config struct {
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`
	Channels struct {
		Catalog []string `yaml:"catalog"`
	} `yaml:"channels"`
	Score struct {
		// WeeklyTargets maps a daily time budget (minutes) to the number of
		// content pieces expected per week for a full regularity score.
		WeeklyTargets       map[int]int `yaml:"weekly_targets"`
		DefaultWeeklyTarget int         `yaml:"default_weekly_target"`
		EngagementTarget    int         `yaml:"engagement_target"`
	} `yaml:"score"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with lac config import <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.User.ID == "" {
		return fmt.Errorf("config.user.id is required")
	}
	if len(c.Channels.Catalog) == 0 {
		return fmt.Errorf("config.channels.catalog is required")
	}
	seen := map[string]bool{}
	for _, ch := range c.Channels.Catalog {
		if ch == "" {
			return fmt.Errorf("config.channels.catalog contains empty channel")
		}
		if seen[ch] {
			return fmt.Errorf("config.channels.catalog lists %s twice", ch)
		}
		seen[ch] = true
	}
	if len(c.Score.WeeklyTargets) == 0 {
		return fmt.Errorf("config.score.weekly_targets is required")
	}
	for minutes, target := range c.Score.WeeklyTargets {
		if minutes <= 0 {
			return fmt.Errorf("weekly target keyed by non-positive daily time %d", minutes)
		}
		if target <= 0 {
			return fmt.Errorf("weekly target for %d minutes must be positive", minutes)
		}
	}
	if c.Score.DefaultWeeklyTarget <= 0 {
		return fmt.Errorf("config.score.default_weekly_target must be positive")
	}
	if c.Score.EngagementTarget <= 0 {
		return fmt.Errorf("config.score.engagement_target must be positive")
	}
	return nil
}

// KnownChannel reports whether ch is in the catalogue.
func (c *Config) KnownChannel(ch string) bool {
	for _, known := range c.Channels.Catalog {
		if known == ch {
			return true
		}
	}
	return false
}

// WeeklyTarget resolves the content target for a daily time budget. Budgets
// between two table entries resolve to the largest entry not above them.
func (c *Config) WeeklyTarget(dailyTime int) int {
	if target, ok := c.Score.WeeklyTargets[dailyTime]; ok {
		return target
	}
	keys := make([]int, 0, len(c.Score.WeeklyTargets))
	for k := range c.Score.WeeklyTargets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	target := c.Score.DefaultWeeklyTarget
	for _, k := range keys {
		if k <= dailyTime {
			target = c.Score.WeeklyTargets[k]
		}
	}
	return target
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "comassist.yml")
}

// Default returns the default Config struct for a user.
func Default(userID string) *Config {
	var cfg Config
	cfg.User.ID = userID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, userID))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(userID string) string {
	return fmt.Sprintf(defaultTemplate, userID)
}

// YAML serializes the config back to YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `user:
  id: %s

channels:
  catalog: [instagram, linkedin, pinterest, website]

score:
  weekly_targets:
    15: 3
    30: 5
    45: 6
    60: 8
  default_weekly_target: 4
  engagement_target: 20
`
