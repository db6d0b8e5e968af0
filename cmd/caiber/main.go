// Package main provides the entry point for the caiber CLI.
//
// caiber drives a four-stage threat intelligence pipeline against a
// backend: requirements generation, threat collection, correlation and
// threat modelling.
//
// Usage:
//
//	caiber run <session-id>
//	caiber serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
