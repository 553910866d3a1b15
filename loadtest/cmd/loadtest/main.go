// Command loadtest drives a chat node with scripted players.
//
//   - saturate:  open N idle connections and hold them
//   - broadcast: N players chat on one channel and measure delivery latency
//
// Usage:
//
//	loadtest <command> [options]
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "saturate":
		runSaturate(os.Args[2:])
	case "broadcast":
		runBroadcast(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: loadtest <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  saturate    Open N idle connections, then hold them")
	fmt.Println("  broadcast   N players chat on one channel; reports delivery latency")
	fmt.Println()
	fmt.Println("Run 'loadtest <command> -h' for command-specific options.")
}

// playerName returns the name of the i-th scripted player. Names satisfy
// the node's 3-16 character rule.
func playerName(prefix string, i int) string {
	return fmt.Sprintf("%s%05d", prefix, i)
}
