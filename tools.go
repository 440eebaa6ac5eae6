//go:build tools

// Tool dependencies used by go:generate.
package main

import (
	_ "go.uber.org/mock/mockgen"
)
