// Command goauthz-loadtest drives session churn and authorization checks against a
// goAuthz authority backed by Redis or an in-process miniredis.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
