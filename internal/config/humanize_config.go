package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// HumanizeConfig tunes the behaviors that make automated browsing look like
// a person: a warmup visit before hitting the portal, paced scrolling, and
// jittered delays between actions.
type HumanizeConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	WarmupURL    string  `mapstructure:"warmup_url" yaml:"warmup_url"`
	ScrollSteps  int     `mapstructure:"scroll_steps" yaml:"scroll_steps"`
	ScrollStepPx int     `mapstructure:"scroll_step_px" yaml:"scroll_step_px"`
	MinDelayMs   int     `mapstructure:"min_delay_ms" yaml:"min_delay_ms"`
	MaxDelayMs   int     `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	JitterFactor float64 `mapstructure:"jitter_factor" yaml:"jitter_factor"`
}

func setHumanizeDefaults(v *viper.Viper) {
	v.SetDefault("browser.humanize.enabled", true)
	v.SetDefault("browser.humanize.warmup_url", "https://www.google.com")
	v.SetDefault("browser.humanize.scroll_steps", 4)
	v.SetDefault("browser.humanize.scroll_step_px", 300)
	v.SetDefault("browser.humanize.min_delay_ms", 400)
	v.SetDefault("browser.humanize.max_delay_ms", 1800)
	v.SetDefault("browser.humanize.jitter_factor", 0.3)
}

// Validate checks the humanize settings.
func (h *HumanizeConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.MinDelayMs < 0 || h.MaxDelayMs < h.MinDelayMs {
		return fmt.Errorf("max_delay_ms must be >= min_delay_ms >= 0")
	}
	if h.JitterFactor < 0 || h.JitterFactor > 1 {
		return fmt.Errorf("jitter_factor must be between 0.0 and 1.0")
	}
	return nil
}
