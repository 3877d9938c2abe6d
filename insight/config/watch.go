package config

import (
	"errors"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrNoConfigFile is returned by Watch when LoadConfig ran on defaults only.
var ErrNoConfigFile = errors.New("no config file to watch")

// Watch re-decodes the config file whenever it changes on disk and hands the
// result to onChange. Decode failures are reported through onError and the
// previous config stays in effect. LoadConfig must have been called first.
func Watch(onChange func(cfg *Config, e fsnotify.Event), onError func(err error)) error {
	if viper.ConfigFileUsed() == "" {
		return ErrNoConfigFile
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(&cfg, e)
	})
	viper.WatchConfig()

	return nil
}
