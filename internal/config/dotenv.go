package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// DotEnvLookup layers values from <dir>/.env and <dir>/.env.<APP_ENV> beneath
// base. Values in the environment-specific file replace those in .env; the
// process environment still wins over both. Missing files are ignored.
func DotEnvLookup(base EnvLookup, dir string) (EnvLookup, error) {
	if base == nil {
		base = DefaultEnvLookup
	}

	values := map[string]string{}
	if err := mergeDotEnv(values, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	appEnv, _ := base("APP_ENV")
	if strings.TrimSpace(appEnv) == "" {
		appEnv = values["APP_ENV"]
	}
	if appEnv = strings.TrimSpace(appEnv); appEnv != "" {
		if err := mergeDotEnv(values, filepath.Join(dir, ".env."+appEnv)); err != nil {
			return nil, err
		}
	}

	return func(key string) (string, bool) {
		if value, ok := base(key); ok && value != "" {
			return value, true
		}
		value, ok := values[key]
		return value, ok
	}, nil
}

func mergeDotEnv(into map[string]string, path string) error {
	parsed, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for key, value := range parsed {
		into[key] = value
	}
	return nil
}
