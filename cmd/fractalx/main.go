// Command fractalx runs the counter board module.
//
//	fractalx init  fractalx.yaml   write the default configuration
//	fractalx run   -c fractalx.yaml  terminal interface
//	fractalx serve -c fractalx.yaml  HTTP and websocket interface with a tick runtime
//	fractalx dot   -c fractalx.yaml  print the component tree as Graphviz DOT
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
