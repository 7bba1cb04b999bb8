//go:build mage
// +build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/sh"
)

// Default target when running mage without arguments.
var Default = Test

// Test runs the full test suite with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// Cover runs the test suite and writes an HTML coverage report.
func Cover() error {
	fmt.Println("Running tests with coverage...")
	if err := sh.Run("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.Run("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Lint runs go vet across the module.
func Lint() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}

// Tidy tidies the module files.
func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}
