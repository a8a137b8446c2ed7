// Package selection finds the text the user has highlighted in the foreground
// window and turns changes of it into a stream of events.
//
// Extractor walks an ordered list of Strategy values and returns the first
// non-empty answer; a failing or panicking strategy is treated as a miss and the
// next one is consulted. Monitor polls a window probe and an Extractor on a
// fixed interval, collapses repeated selections and publishes Event values on a
// channel owned by the monitor.
package selection
