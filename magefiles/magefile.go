//go:build mage

// Package main provides build targets for quill using Mage.
//
// Usage:
//
//	mage build          Compile journal and journal-stream to bin/
//	mage lambda         Cross-compile journal-stream for the provided.al2023 runtime
//	mage test           Run unit tests
//	mage e2e            Run DynamoDB end-to-end tests (needs AWS or DynamoDB Local)
//	mage vet            Run go vet
//	mage clean          Remove build artifacts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo     = "go"
	binaryDir = "bin"
)

var commands = map[string]string{
	"journal":        "./cmd/journal",
	"journal-stream": "./cmd/journal-stream",
}

// Build compiles the command binaries to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	for name, dir := range commands {
		if err := sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, name), dir); err != nil {
			return err
		}
	}
	return nil
}

// Lambda builds the stream handler as a linux/arm64 "bootstrap" binary.
func Lambda() error {
	out := filepath.Join(binaryDir, "lambda", "bootstrap")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	env := map[string]string{"GOOS": "linux", "GOARCH": "arm64", "CGO_ENABLED": "0"}
	return sh.RunWithV(env, binGo, "build", "-tags", "lambda.norpc", "-o", out, commands["journal-stream"])
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// E2E runs the end-to-end tests against DynamoDB.
func E2E() error {
	mg.Deps(Vet)
	return sh.RunV(binGo, "test", "-tags=e2e", "-v", "./e2e/...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}
