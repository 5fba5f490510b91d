package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AnomalyConfig carries the thresholds used by the anomaly detector.
type AnomalyConfig struct {
	ZScoreThreshold     float64 `mapstructure:"zScoreThreshold"`
	ZScoreHighThreshold float64 `mapstructure:"zScoreHighThreshold"`
	UserMeanMultiplier  float64 `mapstructure:"userMeanMultiplier"`
	BusinessHourStart   int     `mapstructure:"businessHourStart"`
	BusinessHourEnd     int     `mapstructure:"businessHourEnd"`
	FrequencyMinTotal   int     `mapstructure:"frequencyMinTotal"`
	FrequencyMinRecent  int     `mapstructure:"frequencyMinRecent"`
	FrequencyWindowHrs  int     `mapstructure:"frequencyWindowHours"`
	Timezone            string  `mapstructure:"timezone"`
}

func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		ZScoreThreshold:     2.5,
		ZScoreHighThreshold: 3.5,
		UserMeanMultiplier:  3,
		BusinessHourStart:   9,
		BusinessHourEnd:     17,
		FrequencyMinTotal:   10,
		FrequencyMinRecent:  5,
		FrequencyWindowHrs:  24,
		Timezone:            "Local",
	}
}

// AnomalyThresholds is satisfied by anything able to hand out the current thresholds.
type AnomalyThresholds interface {
	Get() AnomalyConfig
}

// StaticAnomalyConfig is a fixed AnomalyThresholds.
type StaticAnomalyConfig AnomalyConfig

func (s StaticAnomalyConfig) Get() AnomalyConfig { return AnomalyConfig(s) }

type AnomalyConfigHolder struct {
	current atomic.Value // holds AnomalyConfig
	v       *viper.Viper
}

// NewAnomalyConfigHolder reads anomaly.yml from /etc/encore or the working directory and keeps it
// current while the file changes. Keys absent from the file keep their defaults.
func NewAnomalyConfigHolder(log *zap.Logger) (*AnomalyConfigHolder, error) {
	return newAnomalyConfigHolder(log, true, "/etc/encore", ".")
}

func newAnomalyConfigHolder(log *zap.Logger, watch bool, paths ...string) (*AnomalyConfigHolder, error) {
	log = log.Named("config.anomaly")
	v := viper.New()

	v.SetConfigName("anomaly")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("ENCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAnomalyConfig()
	v.SetDefault(keyZScore, defaults.ZScoreThreshold)
	v.SetDefault(keyZScoreHigh, defaults.ZScoreHighThreshold)
	v.SetDefault(keyUserMean, defaults.UserMeanMultiplier)
	v.SetDefault(keyHourStart, defaults.BusinessHourStart)
	v.SetDefault(keyHourEnd, defaults.BusinessHourEnd)
	v.SetDefault(keyFreqTotal, defaults.FrequencyMinTotal)
	v.SetDefault(keyFreqRecent, defaults.FrequencyMinRecent)
	v.SetDefault(keyFreqWindow, defaults.FrequencyWindowHrs)
	v.SetDefault(keyTimezone, defaults.Timezone)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	holder := &AnomalyConfigHolder{v: v}
	if err := holder.reload(); err != nil {
		return nil, err
	}

	if fileLoaded && watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := holder.reload(); err != nil {
				log.Warn("invalid config ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			log.Info("reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

const (
	keyZScore     = "anomaly.zScoreThreshold"
	keyZScoreHigh = "anomaly.zScoreHighThreshold"
	keyUserMean   = "anomaly.userMeanMultiplier"
	keyHourStart  = "anomaly.businessHourStart"
	keyHourEnd    = "anomaly.businessHourEnd"
	keyFreqTotal  = "anomaly.frequencyMinTotal"
	keyFreqRecent = "anomaly.frequencyMinRecent"
	keyFreqWindow = "anomaly.frequencyWindowHours"
	keyTimezone   = "anomaly.timezone"
)

// reload resolves every key through viper (env, file, default) and swaps the current thresholds
// only when the result validates.
func (h *AnomalyConfigHolder) reload() error {
	v := h.v
	cfg := AnomalyConfig{
		ZScoreThreshold:     v.GetFloat64(keyZScore),
		ZScoreHighThreshold: v.GetFloat64(keyZScoreHigh),
		UserMeanMultiplier:  v.GetFloat64(keyUserMean),
		BusinessHourStart:   v.GetInt(keyHourStart),
		BusinessHourEnd:     v.GetInt(keyHourEnd),
		FrequencyMinTotal:   v.GetInt(keyFreqTotal),
		FrequencyMinRecent:  v.GetInt(keyFreqRecent),
		FrequencyWindowHrs:  v.GetInt(keyFreqWindow),
		Timezone:            strings.TrimSpace(v.GetString(keyTimezone)),
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultAnomalyConfig().Timezone
	}
	if err := ValidateAnomalyConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func (h *AnomalyConfigHolder) Get() AnomalyConfig {
	return h.current.Load().(AnomalyConfig)
}

func ValidateAnomalyConfig(cfg AnomalyConfig) error {
	if cfg.ZScoreThreshold <= 0 {
		return errors.New("anomaly.zScoreThreshold must be positive")
	}
	if cfg.ZScoreHighThreshold < cfg.ZScoreThreshold {
		return errors.New("anomaly.zScoreHighThreshold must not be below zScoreThreshold")
	}
	if cfg.UserMeanMultiplier <= 0 {
		return errors.New("anomaly.userMeanMultiplier must be positive")
	}
	if cfg.BusinessHourStart < 0 || cfg.BusinessHourEnd > 23 || cfg.BusinessHourStart > cfg.BusinessHourEnd {
		return errors.New("anomaly business hours must satisfy 0 <= start <= end <= 23")
	}
	if cfg.FrequencyMinTotal < 0 || cfg.FrequencyMinRecent < 0 {
		return errors.New("anomaly frequency thresholds must not be negative")
	}
	if cfg.FrequencyWindowHrs <= 0 {
		return errors.New("anomaly.frequencyWindowHours must be positive")
	}
	return nil
}
