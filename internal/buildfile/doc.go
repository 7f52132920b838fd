// Package buildfile parses and validates madfront.yaml, the per-project build
// script, and converts it into a pipeline.Graph.
package buildfile
