//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binary  = "translateassist"
	mainPkg = "./cmd/translateassist"
)

// Default target to run when none is specified.
var Default = Build

// Build compiles the translateassist binary into ./bin.
func Build() error {
	if err := os.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", filepath.Join("bin", binary), mainPkg)
}

// Test runs all unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs vet and tests.
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Install installs the binary into GOPATH/bin.
func Install() error {
	mg.Deps(Test)
	return sh.RunV("go", "install", mainPkg)
}

// Clean removes build artifacts.
func Clean() error {
	return sh.Rm("bin")
}
