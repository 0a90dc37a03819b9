// Package config defines the settings of a download run and provides
// helpers to load, validate and save them in YAML format.
//
// Every field has a default, so a missing default settings file is not an error.
package config
