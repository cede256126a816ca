// Package config provides configuration structures and utilities for scrapebook.
// It defines the options shared by the commands (timeouts, concurrency,
// report format, browser settings) and the .scrapebook.yaml file that holds
// per-site request settings and named browser recipes.
package config
