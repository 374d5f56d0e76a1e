// Command matchctl runs the matching core offline against JSON files.
package main

import "os"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
