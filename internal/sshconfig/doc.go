// Package sshconfig edits the SSH client configuration without disturbing content it does not own.
//
// Managed host blocks are delimited by marker comments naming their alias. Parse splits a config into
// opaque segments, preserved byte-for-byte, and managed blocks whose bodies are decoded with
// github.com/kevinburke/ssh_config. Synchronizer wraps the pure Document operations with a
// per-file lock and atomic replacement of the file on disk.
package sshconfig
