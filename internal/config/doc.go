// Package config provides configuration structures and utilities for serialmirror.
// It defines crawl politeness and retry settings, on-disk layout, extraction
// selectors and the YAML file that can carry all of them.
package config
