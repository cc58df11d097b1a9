// Command wizardctl checks and inspects transaction definition files
// offline, without starting the server.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
