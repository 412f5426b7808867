// Package suggest ranks stored accounts against discovered repositories using their origin remotes.
package suggest
