// Command campaignhub runs the influencer campaign server and its operator commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: ")+err.Error())
		os.Exit(1)
	}
}
