// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/starburger/foodcart/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
