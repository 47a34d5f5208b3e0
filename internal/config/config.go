package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string
		LogLevel string `mapstructure:"log_level"`
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	Facility struct {
		MaxCapacity          int     `mapstructure:"max_capacity"`
		DefaultSessionHours  float64 `mapstructure:"default_session_hours"`
		WarningWindowMinutes int     `mapstructure:"warning_window_minutes"`
		SweepIntervalSeconds int     `mapstructure:"sweep_interval_seconds"`
	} `mapstructure:"facility"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("facility.max_capacity", 4)
	v.SetDefault("facility.default_session_hours", 1.0)
	v.SetDefault("facility.warning_window_minutes", 5)
	v.SetDefault("facility.sweep_interval_seconds", 60)
	return v
}

func Load(path string) (Config, error) {
	v := newViper(path)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// Watcher re-reads the config file on change so facility settings
// (capacity above all) can be adjusted without a restart.
type Watcher struct {
	mu sync.RWMutex
	c  Config
}

func Watch(path string) (*Watcher, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	w := &Watcher{}
	if err := v.Unmarshal(&w.c); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		var c Config
		if err := v.Unmarshal(&c); err != nil {
			return
		}
		w.mu.Lock()
		w.c = c
		w.mu.Unlock()
	})
	v.WatchConfig()
	return w, nil
}

func (w *Watcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.c
}

func (w *Watcher) MaxCapacity() int {
	return w.Config().Facility.MaxCapacity
}
