// Package config provides the crawler configuration: defaults, validation,
// the optional .ebcrawl YAML file and .env overrides.
package config
