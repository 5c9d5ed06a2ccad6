package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icodeforyou/pvsoiling/logging"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfigWeather struct {
	ArchiveURL  *string `mapstructure:"archive_url"`
	ForecastURL *string `mapstructure:"forecast_url"`
	// Request timeout in seconds, default: 15
	Timeout *int `mapstructure:"timeout"`
}

func (w AppConfigWeather) GetArchiveURL() string {
	if w.ArchiveURL == nil {
		return "https://archive-api.open-meteo.com/v1/archive"
	}
	return *w.ArchiveURL
}

func (w AppConfigWeather) GetForecastURL() string {
	if w.ForecastURL == nil {
		return "https://api.open-meteo.com/v1/forecast"
	}
	return *w.ForecastURL
}

func (w AppConfigWeather) GetTimeout() time.Duration {
	return seconds(w.Timeout, 15)
}

type AppConfigEncryption struct {
	// 64 hex characters (32 bytes), usually set through ENCRYPTION_KEY
	Key string
}

type AppConfigScheduler struct {
	// Cron spec for the inverter sync, default: "@hourly"
	RunAt *string `mapstructure:"run_at"`
	// Cron spec for backups and purging, default: "30 2 * * *"
	MaintenanceRunAt *string `mapstructure:"maintenance_run_at"`
	// Bearer token for POST /api/cron/sync, usually set through SCHEDULER_SECRET
	Secret string
	// Seconds a new sync run is rejected after the previous one started, default: 60
	MinInterval *int `mapstructure:"min_interval"`
}

func (s AppConfigScheduler) GetRunAt() string {
	if s.RunAt == nil {
		return "@hourly"
	}
	return *s.RunAt
}

func (s AppConfigScheduler) GetMaintenanceRunAt() string {
	if s.MaintenanceRunAt == nil {
		return "30 2 * * *"
	}
	return *s.MaintenanceRunAt
}

func (s AppConfigScheduler) GetMinInterval() time.Duration {
	return seconds(s.MinInterval, 60)
}

type AppConfigSolarEdge struct {
	BaseURL *string `mapstructure:"base_url"`
}

func (s AppConfigSolarEdge) GetBaseURL() string {
	if s.BaseURL == nil {
		return "https://monitoringapi.solaredge.com"
	}
	return *s.BaseURL
}

type AppConfigHuawei struct {
	BaseURL *string `mapstructure:"base_url"`
	// Minutes before a new login is made, default: 25
	SessionTTL *int `mapstructure:"session_ttl"`
	// Minimum seconds between two authenticated calls, default: 30
	MinRequestInterval *int `mapstructure:"min_request_interval"`
}

func (h AppConfigHuawei) GetBaseURL() string {
	if h.BaseURL == nil {
		return "https://eu5.fusionsolar.huawei.com"
	}
	return *h.BaseURL
}

func (h AppConfigHuawei) GetSessionTTL() time.Duration {
	if h.SessionTTL == nil {
		return 25 * time.Minute
	}
	return time.Duration(*h.SessionTTL) * time.Minute
}

func (h AppConfigHuawei) GetMinRequestInterval() time.Duration {
	return seconds(h.MinRequestInterval, 30)
}

type AppConfigMqtt struct {
	// Publishing is disabled when empty
	Host     string
	Port     int16
	Username string
	Password string
	// Topics are <prefix>/<plant id>/<event kind>, default: "pvsoiling"
	TopicPrefix *string `mapstructure:"topic_prefix"`
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Host != ""
}

func (m AppConfigMqtt) GetPort() int16 {
	if m.Port == 0 {
		return 1883
	}
	return m.Port
}

func (m AppConfigMqtt) GetTopicPrefix() string {
	if m.TopicPrefix == nil {
		return "pvsoiling"
	}
	return *m.TopicPrefix
}

type AppConfig struct {
	Api        AppConfigApi
	Database   AppConfigDatabase
	Logging    AppConfigLogging    `mapstructure:"logging"`
	Weather    AppConfigWeather    `mapstructure:"weather"`
	Encryption AppConfigEncryption `mapstructure:"encryption"`
	Scheduler  AppConfigScheduler  `mapstructure:"scheduler"`
	SolarEdge  AppConfigSolarEdge  `mapstructure:"solaredge"`
	Huawei     AppConfigHuawei     `mapstructure:"huawei"`
	Mqtt       AppConfigMqtt       `mapstructure:"mqtt"`
	// Decides which calendar day is "today", default: UTC
	Timezone *string `mapstructure:"timezone"`

	file string
}

func (c AppConfig) GetTimezone() string {
	if c.Timezone == nil {
		return "UTC"
	}
	return *c.Timezone
}

// File is the config file the values were read from.
func (c AppConfig) File() string {
	return c.file
}

func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Secrets are normally only present in the environment.
	for _, key := range []string{"encryption.key", "scheduler.secret", "mqtt.password"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("unable to bind %s: %w", key, err)
		}
	}

	var c AppConfig

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	c.file = v.ConfigFileUsed()

	return &c, nil
}

func seconds(v *int, def int) time.Duration {
	if v == nil {
		return time.Duration(def) * time.Second
	}
	return time.Duration(*v) * time.Second
}
