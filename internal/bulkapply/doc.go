// Package bulkapply decides and applies account bindings across many repositories and aggregates
// the per-repository outcomes into a BulkReport.
package bulkapply
