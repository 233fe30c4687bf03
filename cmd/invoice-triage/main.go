package main

import (
	"fmt"
	"os"

	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if code := common.ErrorCode(err); code != "" {
			printError("Error [%s]: %v\n", code, err)
		} else {
			printError("Error: %v\n", err)
		}
		os.Exit(1)
	}
}
