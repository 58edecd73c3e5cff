package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFlagName  = "config"
	envFileFlagName = "env-file"
)

// addConfigFlags registers --config and --env-file on fs.
func (a *App) addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&a.configFile, configFlagName, "c", a.configFile,
		"Read configuration from the specified file (yaml, json or toml).")
	fs.StringVar(&a.envFile, envFileFlagName, ".env",
		"Load environment variables from this dotenv file before reading configuration. A missing file is ignored.")
}

// loadEnvFile exports the dotenv file into the process environment.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// newViper prepares a viper instance reading BOTPOD_* variables and the optional config file.
func newViper(envPrefix, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		return v, nil
	}

	v.SetConfigFile(configFile)
	if ext := strings.TrimPrefix(filepath.Ext(configFile), "."); ext == "yml" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configFile); statErr != nil {
			return nil, statErr
		}
		return nil, err
	}

	return v, nil
}
