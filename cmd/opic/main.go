package main

import (
	"fmt"
	"io"
	"os"
)

// Version is the engine version recorded in checkpoints and compared by
// `opic doctor`.
const Version = "0.9.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "execute":
		return runExecuteCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "issue":
		return runIssueCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "opic — voice execution engine")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  opic execute <path>       load a .ops file and run its main voice")
	fmt.Fprintln(w, "  opic verify <witness-log> recompute a persisted witness chain")
	fmt.Fprintln(w, "  opic keygen <ca-id>       generate a CA signing key")
	fmt.Fprintln(w, "  opic issue ...            issue a certificate under a CA")
	fmt.Fprintln(w, "  opic doctor               check the .opicup checkpoint")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment: OPIC_REALM, OPIC_CA, OPIC_ROOT, OPIC_WITNESS_LOG,")
	fmt.Fprintln(w, "             OPIC_CONVENTIONS, OPIC_KEYS, OPIC_PROFILE, OPIC_TIMEOUT_MS,")
	fmt.Fprintln(w, "             OPIC_LOG_LEVEL")
}
