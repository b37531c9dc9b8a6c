// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs every test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Unit runs tests in short mode.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Race runs every test with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Postgres runs the ledger tests against the server named by
// STANDPROJ_TEST_POSTGRES_DSN.
func (Test) Postgres() error {
	if os.Getenv("STANDPROJ_TEST_POSTGRES_DSN") == "" {
		fmt.Println("STANDPROJ_TEST_POSTGRES_DSN not set; skipping.")
		return nil
	}
	return sh.RunV(binGo, "test", "-run", "Postgres", "-v", "./internal/ledger/...")
}
