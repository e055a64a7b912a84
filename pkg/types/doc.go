// Package types defines the values that flow between the watcher, the
// ingestion pipeline and the presentation layer: the DropEvent handed to the
// pipeline and the Result it reports back.
package types
