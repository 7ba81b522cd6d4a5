// Package main is the entry point for the crickrecon CLI tool, which reconciles a
// cricket ball-by-ball export against a relational store and derives match results
// and player statistics.
package main

import "github.com/pable/crickrecon/cmd"

func main() {
	cmd.Execute()
}
