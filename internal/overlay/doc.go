// Package overlay wires the selection pipeline together: the monitor feeds
// selections through the analyzer into the completion queue, whose engine
// runs on the model owned by the lifecycle manager.
//
// Overlay is the single entry point used by the HTTP layer and the CLI. All
// of its methods are safe for concurrent use and never block on inference.
package overlay
