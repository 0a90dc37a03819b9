// Package common holds host helpers shared by services: who is running the
// tool, and which relevant processes are running next to it.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
