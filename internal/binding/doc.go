// Package binding attaches an account to a repository.
//
// Binding sets the repository-local commit identity, points the origin remote at the account's SSH
// host alias and ensures the alias exists in the SSH client configuration. Plan computes the same
// actions Bind performs, so dry runs and real runs share one code path.
package binding
