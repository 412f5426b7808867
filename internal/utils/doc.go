// Package utils exposes the configuration loader, logger factory and command plumbing shared by the gitid
// commands.
package utils
