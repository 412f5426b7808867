// Package accounts owns Git identity records: validation, host alias derivation, lookup by name,
// username, or email, and TOML persistence of the account store.
package accounts
