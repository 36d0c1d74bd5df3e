package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"resume-editor/internal/shared/telemetry"
)

// loadEnvFiles copies KEY=VALUE pairs from the given dotenv files into the
// process environment. Variables that are already set win. Missing files are
// skipped; malformed files are skipped with a warning.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			telemetry.Warn("config.dotenv_invalid", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		for _, key := range v.AllKeys() {
			name := strings.ToUpper(key)
			if os.Getenv(name) != "" {
				continue
			}
			_ = os.Setenv(name, v.GetString(key))
		}
	}
}
