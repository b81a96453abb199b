// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"github.com/avtoolkit/encodarr/cmd/encodarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
