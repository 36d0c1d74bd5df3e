package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings are defaults for flags left unset on the command line.
type Settings struct {
	File string `mapstructure:"file" yaml:"file"`
	AsOf string `mapstructure:"as_of" yaml:"as_of"`
}

// LoadSettings reads defaults from cfgFile, or ~/.resumectl/config.yaml when
// empty. Precedence: env (RESUMECTL_*) > config file > defaults. A missing
// config file is not an error.
func LoadSettings(cfgFile string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("RESUMECTL")
	v.AutomaticEnv()

	v.SetDefault("file", "")
	v.SetDefault("as_of", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".resumectl"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		_ = v.ReadInConfig()
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return s, nil
}
