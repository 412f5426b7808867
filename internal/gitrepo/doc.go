// Package gitrepo contains helpers for interrogating and manipulating Git repositories
// without shelling out to the git binary.
//
// It parses origin remote URLs into host and owner path components, formats the SSH
// alias form used when binding a repository to an identity, and exposes ConfigManager
// for reading and atomically rewriting a repository's local configuration file.
package gitrepo
