//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

const binary = "bin/bread"

type Build mg.Namespace

// Tidies the module and builds the bread binary into bin/.
func (Build) Binary() error {
	if err := goTidy(); err != nil {
		return err
	}
	version, err := executeCmd("git", withArgs("describe", "--tags", "--always", "--dirty"))
	if err != nil {
		version = "dev"
	}
	fmt.Printf("Building %s (%s)...\n", binary, version)
	_, err = executeCmd("go",
		withArgs("build", "-trimpath", "-o", binary, "./cmd/bread"),
		withEnv("CGO_ENABLED=0"),
		withStream(),
	)
	return err
}

type Test mg.Namespace

// Runs every package test.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}

// Runs every package test with the race detector.
func (Test) Race() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withStream())
	return err
}

// Runs go vet over the module.
func Lint() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}
