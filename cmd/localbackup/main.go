// Package main is the entry point for localbackup.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
