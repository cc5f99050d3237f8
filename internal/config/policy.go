package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Policy holds the compliance knobs operators may change without a restart.
type Policy struct {
	ExpiringWindowDays int         `mapstructure:"expiringWindowDays"`
	Quota              PolicyQuota `mapstructure:"quota"`
}

type PolicyQuota struct {
	PerEntityPerHour int `mapstructure:"perEntityPerHour"`
	PerOrgPerMonth   int `mapstructure:"perOrgPerMonth"`
}

// ExpiringWindow returns the expiring_soon warning window.
func (p Policy) ExpiringWindow() time.Duration {
	return time.Duration(p.ExpiringWindowDays) * 24 * time.Hour
}

func DefaultPolicy(cfg Config) Policy {
	return Policy{
		ExpiringWindowDays: cfg.Compliance.ExpiringWindowDays,
		Quota: PolicyQuota{
			PerEntityPerHour: cfg.Quota.PerEntityPerHour,
			PerOrgPerMonth:   cfg.Quota.PerOrgPerMonth,
		},
	}
}

type PolicyHolder struct {
	current atomic.Value // holds Policy
}

// StaticPolicy returns a holder that never reloads.
func StaticPolicy(p Policy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(p)
	return holder
}

// NewPolicyHolder reads compliance.yml when present and watches it for changes.
// Env-derived defaults apply to any key the file leaves out.
func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	defaults := DefaultPolicy(cfg)
	if err := validatePolicy(defaults); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("compliance")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(cfg.Compliance.PolicyFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/etc/covercheck")
		v.AddConfigPath(".")
	}
	v.SetDefault("compliance.expiringWindowDays", defaults.ExpiringWindowDays)
	v.SetDefault("compliance.quota.perEntityPerHour", defaults.Quota.PerEntityPerHour)
	v.SetDefault("compliance.quota.perOrgPerMonth", defaults.Quota.PerOrgPerMonth)

	holder := StaticPolicy(defaults)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return holder, nil
		}
		if cfg.Compliance.PolicyFile == "" {
			return nil, err
		}
		log.Warn("compliance policy file unreadable, using defaults", zap.Error(err))
		return holder, nil
	}

	loaded, err := unmarshalPolicy(v)
	if err != nil {
		return nil, err
	}
	if err := validatePolicy(loaded); err != nil {
		return nil, err
	}
	holder.current.Store(loaded)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPolicy(v)
		if err != nil {
			log.Warn("compliance policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid compliance policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("compliance policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// unmarshalPolicy goes through AllSettings so defaults fill keys the file omits.
func unmarshalPolicy(v *viper.Viper) (Policy, error) {
	var wrapper struct {
		Compliance Policy `mapstructure:"compliance"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return Policy{}, err
	}
	return wrapper.Compliance, nil
}

func (h *PolicyHolder) Get() Policy {
	return h.current.Load().(Policy)
}

func validatePolicy(p Policy) error {
	if p.ExpiringWindowDays < 0 {
		return errors.New("compliance.expiringWindowDays cannot be negative")
	}
	if p.Quota.PerEntityPerHour <= 0 {
		return errors.New("compliance.quota.perEntityPerHour must be positive")
	}
	if p.Quota.PerOrgPerMonth <= 0 {
		return errors.New("compliance.quota.perOrgPerMonth must be positive")
	}
	return nil
}
