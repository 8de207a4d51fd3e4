//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs a headless engine that hosts the remote command server.
func (Run) Host() error {
	mg.Deps(Build.Binary)
	fmt.Println("Run host...")
	_, err := executeCmd(binary, withArgs("run", "--host", "--stay"), withStream())
	return err
}

// Runs the interactive console screen.
func (Run) Console() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd(binary, withArgs("console"), withStream())
	return err
}

// Runs the SSH console server with configs/bread.yaml.
func (Run) Serve() error {
	mg.Deps(Build.Binary)
	_, err := executeCmd(binary, withArgs("serve", "--config", "configs/bread.yaml"), withDir("."), withStream())
	return err
}
