// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

// Package main provides build targets for standproj using Mage.
//
// Usage:
//
//	mage build       Compile standproj to bin/
//	mage test:all    Run all tests
//	mage test:unit   Run tests without the race detector or integration
//	mage test:race   Run all tests with the race detector
//	mage lint        Run golangci-lint
//	mage trial       Project testdata/polygons.yaml against the stub engines
//	mage clean       Remove build artifacts
//	mage install     Install standproj to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "standproj"
	binaryDir  = "bin"
	cmdDir     = "./cmd/standproj"
	versionVar = "github.com/mesh-intelligence/standproj/internal/cli.Version"
)

// version is the git description of HEAD, or "dev" outside a checkout.
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return v
}

// Build compiles the standproj binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X %s=%s", versionVar, version())
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Trial builds standproj and projects the sample polygons with the stub
// engines, using a throwaway config and work directory.
func Trial() error {
	mg.Deps(Build)
	tmp, err := os.MkdirTemp("", "standproj-trial-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	env := map[string]string{"STANDPROJ_DATA_DIR": filepath.Join(tmp, "data")}
	return sh.RunWithV(env, filepath.Join(binaryDir, binaryName),
		"--config-dir", filepath.Join(tmp, "config"),
		"--work-dir", filepath.Join(tmp, "work"),
		"project", "--trial", "-i", filepath.Join("testdata", "polygons.yaml"))
}
