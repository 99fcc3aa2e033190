package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "anibridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	subcmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "serve":
		return cmdServe(args)
	case "init":
		return cmdInit()
	case "status":
		return cmdStatus()
	case "cache":
		return cmdCache(args)
	case "titles":
		return cmdTitles(args)
	case "credential":
		return cmdCredential(args)
	default:
		return fmt.Errorf("unknown command: %s\nUsage: anibridge [serve|init|status|cache|titles|credential]", subcmd)
	}
}
