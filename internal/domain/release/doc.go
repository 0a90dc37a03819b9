// Package release contains the domain types of an Axelor download:
// the version triple, the download mode, the URL templates and the plan
// that maps a (version, mode) pair onto archives, folders and paths.
//
// It also defines the error kinds shared by every stage of the fetcher.
package release
