package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type daemonConfig struct {
	Bundles bundleConfig `yaml:"bundles"`
	HTTP    httpConfig   `yaml:"http"`
	Store   storeConfig  `yaml:"store"`
}

type bundleConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type httpConfig struct {
	Addr string `yaml:"addr"`
}

type storeConfig struct {
	// Backend selects variable persistence: memory, file, bolt, redis,
	// or postgres.
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	Migrate       bool   `yaml:"migrate"`
}

func defaultConfig() daemonConfig {
	return daemonConfig{
		Bundles: bundleConfig{Dir: "./bundles", Watch: true},
		HTTP:    httpConfig{Addr: ":8173"},
		Store:   storeConfig{Backend: "memory"},
	}
}

// loadConfig reads a YAML config file over the defaults, then applies
// environment overrides for credentials so secrets stay out of config
// files.
func loadConfig(path string) (daemonConfig, error) {
	config := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("CANVASFLOW_REDIS_ADDR"); v != "" {
		config.Store.RedisAddr = v
	}
	if v := os.Getenv("CANVASFLOW_REDIS_PASSWORD"); v != "" {
		config.Store.RedisPassword = v
	}
	if v := os.Getenv("CANVASFLOW_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return config, fmt.Errorf("parsing CANVASFLOW_REDIS_DB: %w", err)
		}
		config.Store.RedisDB = db
	}
	if v := os.Getenv("CANVASFLOW_POSTGRES_DSN"); v != "" {
		config.Store.PostgresDSN = v
	}
	return config, nil
}
