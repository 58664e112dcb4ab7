// Package config loads service configuration with Viper.
//
// LoadConfig resolves a config.yml and an optional .env file from the
// standard locations (./cmd/<service>/, ./config/, the working directory),
// then overlays environment variables onto nested keys, so both
// QUEUE_SQS_QUEUE_URL and a flat alias like SQS_QUEUE_URL can feed
// queue.sqs.queue_url.
//
//	var cfg AppConfig
//	err := config.LoadConfig("remworker", &cfg, config.WithEnvAliases(aliases))
package config
