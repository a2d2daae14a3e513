// Package config loads process configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: an optional
// .env file is read once, then the environment is parsed into tagged structs.
// Every config struct in this repository lives next to the package it
// configures (queue.Config, email.Config, reminder.Config and so on) and is
// loaded through Load:
//
//	var cfg bootstrap.AppConfig
//	config.MustLoad(&cfg)
//
// Each struct type is parsed once and cached for the lifetime of the process.
// Tests that change the environment call ResetCache between loads.
package config
