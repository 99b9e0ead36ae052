//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for termmeta using Mage.
//
// Usage:
//
//	mage build             Compile the termmeta binary to bin/
//	mage test:all          Run all tests (unit + integration)
//	mage test:unit         Run only unit tests (exclude tests/)
//	mage test:integration  Run only integration tests (builds first)
//	mage test:cover        Run unit tests with a coverage profile
//	mage lint              Run gofmt check, go vet and golangci-lint
//	mage clean             Remove build artifacts
//	mage install           Install termmeta with go install
//	mage stats             Print Go line counts per package
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "termmeta"
	binaryDir  = "bin"
	cmdDir     = "./cmd/termmeta"
)

// Build compiles the termmeta binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove(coverProfile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install installs termmeta into GOBIN (or GOPATH/bin).
func Install() error {
	return sh.RunV(binGo, "install", cmdDir)
}
