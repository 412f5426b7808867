// Package report renders bulk apply results for people (markdown) and tools (YAML).
package report
