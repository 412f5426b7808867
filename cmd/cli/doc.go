// Package cli constructs the gitid command-line interface. It wires the Cobra command hierarchy to the
// layered configuration loader, the zap logger and the service graph built by the dependencies package.
package cli
