// Package fetcher downloads an Axelor release and prepares it for a servlet container.
//
// A run is a linear pipeline: parse the version, resolve the release plan,
// run preflight checks, download every artifact, extract them into the release
// folder, install the optional brand logo, hand the tree over to the service
// account on POSIX systems and finally print post-install guidance.
// Partial files are left in place when a stage fails.
package fetcher
