// Package completion turns an analyzed selection into a prompt, runs it
// against the loaded model and funnels requests through a single-flight
// queue in which only the most recent request is allowed to produce a result.
package completion
