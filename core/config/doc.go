// Package config provides type-safe environment variable loading with
// per-type caching.
//
// Configuration structs declare their environment bindings with `env`
// tags and are parsed by the caarlos0/env library. A .env file is
// applied automatically on first use, which keeps local development
// setups out of the shell profile.
//
//	type UpstreamConfig struct {
//		APIKey string        `env:"OPENAI_API_KEY,required"`
//		Model  string        `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`
//		Wait   time.Duration `env:"OPENAI_TIMEOUT" envDefault:"30s"`
//	}
//
//	var cfg UpstreamConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Each type is loaded once per process lifetime; repeated loads of the
// same type return the cached value, so components can load their own
// configuration independently without re-reading the environment.
package config
