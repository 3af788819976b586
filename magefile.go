//go:build mage

// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName   = "pvopt"
	modulePath   = "github.com/penny-vault/pv-optimizer"
	packageName  = "."
	coverProfile = "coverage.out"
	noGitLdflags = "-X " + modulePath + "/common.buildDate=$BUILD_DATE"
)

var ldflags = "-X " + modulePath + "/common.commitHash=$COMMIT_HASH -X " + modulePath + "/common.buildDate=$BUILD_DATE"

// allow user to override go executable by running as GOEXE=xxx mage ...
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Build the pvopt binary
func Build() error {
	fmt.Println("Building...")
	env := flagEnv()
	return sh.RunWith(env, goexe, buildArgs("build", "-o", binaryName, "-ldflags", ldflagsFor(env), "-v", packageName)...)
}

// Install pvopt into GOBIN
func Install() error {
	env := flagEnv()
	return sh.RunWith(env, goexe, buildArgs("install", "-ldflags", ldflagsFor(env), packageName)...)
}

// Clean removes the binary and coverage output
func Clean() {
	fmt.Println("Cleaning...")
	for _, f := range []string{binaryName, coverProfile} {
		if err := os.RemoveAll(f); err != nil {
			fmt.Printf("ERROR: removing %s: %v\n", f, err)
		}
	}
}

// Check runs the formatters, vet and the race enabled test suite
func Check() {
	mg.Deps(Fmt, Vet)
	mg.Deps(TestRace)
}

// Test runs the ginkgo suites of every package
func Test() error {
	fmt.Println("Go Test")
	return runCmd(goexe, "test", "./...")
}

// TestRace runs the test suites with the race detector
func TestRace() error {
	fmt.Println("Go Test Race")
	return runCmd(goexe, "test", "-race", "./...")
}

// Fmt fails when any file needs gofmt
func Fmt() error {
	fmt.Println("Go Format")

	// gofmt exits 0 even when it finds unformatted code
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}

	var bad []string
	for _, f := range strings.Split(out, "\n") {
		if f != "" && !strings.HasPrefix(f, "_") {
			bad = append(bad, f)
		}
	}
	if len(bad) > 0 {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(strings.Join(bad, "\n"))
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Vet runs go vet
func Vet() error {
	fmt.Println("Go Vet")

	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

// Cover writes a coverage profile and opens the html report
func Cover() error {
	fmt.Println("Generate Test Coverage HTML")

	if err := runCmd(goexe, "test", "-coverprofile="+coverProfile, "-covermode=count", "./..."); err != nil {
		return err
	}
	return sh.Run(goexe, "tool", "cover", "-html="+coverProfile)
}

// Helpers

func buildArgs(args ...string) []string {
	if runtime.GOOS == "windows" {
		return append([]string{args[0], "-buildmode", "exe"}, args[1:]...)
	}
	return args
}

// ldflagsFor drops the commit hash when building outside a git checkout
func ldflagsFor(env map[string]string) string {
	if env["COMMIT_HASH"] == "" {
		return noGitLdflags
	}
	return ldflags
}

func flagEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

func runCmd(cmd string, args ...string) error {
	if mg.Verbose() {
		return sh.Run(cmd, args...)
	}
	output, err := sh.Output(cmd, args...)
	if err != nil {
		fmt.Fprint(os.Stderr, output)
	}
	return err
}
