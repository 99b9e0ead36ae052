// Package main provides the termmeta CLI.
package main

import "github.com/mesh-intelligence/termmeta/internal/cli"

func main() {
	cli.Execute()
}
