// Command settle computes who owes whom from a file of expenses, without
// any server or storage.
//
//	settle calc trip.yaml
//	settle calc trip.json --json --currency GBP
//	settle currencies
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
