// Package ownership hands an extracted release over to a service account.
//
// The platform is checked once at runtime: POSIX systems get a changer that
// walks the tree and calls lchown, other systems get a no-op. Both satisfy
// Changer so the fetcher pipeline stays linear and tests can swap either in.
package ownership
