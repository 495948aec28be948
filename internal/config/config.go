// Package config loads the daemon configuration through Viper and
// builds the Zap logger from it. Settings come from a YAML file plus
// SWMGR_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/OtisPresley/snmp-switch-manager/pkg/models"
)

// Config is the top-level daemon configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Devices  []DeviceConfig `mapstructure:"devices"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type ProbeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DeviceConfig is one device entry in the config file. Devices may
// also be added at runtime; file entries are upserted at startup.
type DeviceConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Host    string `mapstructure:"host"`
	Port    uint16 `mapstructure:"port"`
	Version string `mapstructure:"version"`

	Community string `mapstructure:"community"`

	Username          string `mapstructure:"username"`
	AuthProtocol      string `mapstructure:"auth_protocol"`
	AuthPassphrase    string `mapstructure:"auth_passphrase"`
	PrivacyProtocol   string `mapstructure:"privacy_protocol"`
	PrivacyPassphrase string `mapstructure:"privacy_passphrase"`
	SecurityLevel     string `mapstructure:"security_level"`
	ContextName       string `mapstructure:"context_name"`

	Categories            map[string]CategoryConfig `mapstructure:"categories"`
	CustomOIDs            map[string]string         `mapstructure:"custom_oids"`
	DisabledVendorFilters []string                  `mapstructure:"disabled_vendor_filters"`

	Rules []RuleConfig `mapstructure:"rules"`
}

type CategoryConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Mode     string        `mapstructure:"mode"`
}

// RuleConfig is one rule entry. Scope selects which rule list it joins:
// "interface" (default) or "bandwidth".
type RuleConfig struct {
	Type        string `mapstructure:"type"`
	Match       string `mapstructure:"match"`
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
	Scope       string `mapstructure:"scope"`
}

// Load reads the configuration file (optional) and environment and
// returns the parsed config with defaults applied.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "swmgr.db")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9477")
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout", 2*time.Second)

	v.SetEnvPrefix("SWMGR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, v, nil
}

// ToModel converts a file device entry into the domain device and its
// rule set. Intervals are clamped to the supported range.
func (d *DeviceConfig) ToModel() (*models.Device, models.RuleSet, error) {
	if d.Host == "" {
		return nil, models.RuleSet{}, fmt.Errorf("device %q: host is required", d.Name)
	}

	version := models.SNMPVersion(d.Version)
	switch version {
	case models.SNMPv2c, models.SNMPv3:
	case "":
		version = models.SNMPv2c
	default:
		return nil, models.RuleSet{}, fmt.Errorf("device %q: unknown snmp version %q", d.Name, d.Version)
	}

	dev := &models.Device{
		ID:      d.ID,
		Name:    d.Name,
		Host:    d.Host,
		Port:    d.Port,
		Version: version,
		Creds: models.Credentials{
			Community:         d.Community,
			Username:          d.Username,
			AuthProtocol:      d.AuthProtocol,
			AuthPassphrase:    d.AuthPassphrase,
			PrivacyProtocol:   d.PrivacyProtocol,
			PrivacyPassphrase: d.PrivacyPassphrase,
			SecurityLevel:     d.SecurityLevel,
			ContextName:       d.ContextName,
		},
		Categories:            make(map[models.PollCategory]models.CategoryConfig),
		CustomOIDs:            d.CustomOIDs,
		DisabledVendorFilters: d.DisabledVendorFilters,
	}
	if dev.Name == "" {
		dev.Name = dev.Host
	}

	for name, cc := range d.Categories {
		cat := models.PollCategory(name)
		if !validCategory(cat) {
			return nil, models.RuleSet{}, fmt.Errorf("device %q: unknown category %q", d.Name, name)
		}
		mode := models.CategoryMode(cc.Mode)
		if mode == "" {
			mode = models.ModeAttributes
		}
		if mode != models.ModeAttributes && mode != models.ModeSensors {
			return nil, models.RuleSet{}, fmt.Errorf("device %q: unknown mode %q", d.Name, cc.Mode)
		}
		dev.Categories[cat] = models.CategoryConfig{
			Enabled:  cc.Enabled,
			Interval: models.ClampInterval(cc.Interval),
			Mode:     mode,
		}
	}

	rs, err := splitRules(d.Rules)
	if err != nil {
		return nil, models.RuleSet{}, fmt.Errorf("device %q: %w", d.Name, err)
	}
	return dev, rs, nil
}

func validCategory(cat models.PollCategory) bool {
	for _, c := range models.AllCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func splitRules(in []RuleConfig) (models.RuleSet, error) {
	var rs models.RuleSet
	for _, rc := range in {
		rule := models.Rule{
			Type:        models.RuleType(rc.Type),
			Match:       models.MatchKind(rc.Match),
			Pattern:     rc.Pattern,
			Replacement: rc.Replacement,
		}
		switch rule.Match {
		case models.MatchStartsWith, models.MatchContains, models.MatchEndsWith, models.MatchRegex:
		default:
			return rs, fmt.Errorf("unknown match kind %q", rc.Match)
		}

		scope := rc.Scope
		if scope == "" {
			scope = "interface"
		}
		switch {
		case scope == "interface" && rule.Type == models.RuleInclude:
			rs.InterfaceInclude = append(rs.InterfaceInclude, rule)
		case scope == "interface" && rule.Type == models.RuleExclude:
			rs.InterfaceExclude = append(rs.InterfaceExclude, rule)
		case scope == "interface" && rule.Type == models.RuleRename:
			rs.InterfaceRename = append(rs.InterfaceRename, rule)
		case scope == "bandwidth" && rule.Type == models.RuleInclude:
			rs.BandwidthInclude = append(rs.BandwidthInclude, rule)
		case scope == "bandwidth" && rule.Type == models.RuleExclude:
			rs.BandwidthExclude = append(rs.BandwidthExclude, rule)
		case scope == "bandwidth" && rule.Type == models.RuleRename:
			return rs, fmt.Errorf("bandwidth rules cannot rename")
		default:
			return rs, fmt.Errorf("unknown rule type %q or scope %q", rc.Type, rc.Scope)
		}
	}
	return rs, nil
}
