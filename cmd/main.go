// Command hurdletime runs the hurdle timing service and its data tools.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
