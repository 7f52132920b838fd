// Package cli is the madfront command tree. new scaffolds a project; run,
// build and dev drive the pipeline from the project's madfront.yaml; tasks,
// doctor, config and version are the supporting commands. Commands only parse
// flags and print results, the work happens in the other internal packages.
package cli
