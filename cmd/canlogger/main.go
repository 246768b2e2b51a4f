// Command canlogger is the CAN bus data logger's process entry point.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
