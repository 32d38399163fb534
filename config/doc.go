// Package config loads queuekit configuration from files and the environment.
//
// It uses Viper to read config.yml, godotenv to load .env files, and binds
// QUEUEKIT_-prefixed environment variables onto nested keys. Precedence,
// lowest first: defaults, config file, environment, overrides.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("queuekit", &cfg,
//	    config.WithDefaults(map[string]any{"pipeline.timeout": "5s"}),
//	)
//
// QUEUEKIT_PIPELINE_TIMEOUT=2s overrides pipeline.timeout.
package config
