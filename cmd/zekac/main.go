// Command zekac compiles a YAML rubric into a zeka.dat artifact, and
// inspects an already-compiled one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/rubric"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code directly rather than an error, so
// the compiler's exit-code contract (spec.md §9: 0 success, 2 YAML
// validation failure, 3 duplicate-or-malformed check) is decided in
// one place instead of being reconstructed by main.
func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "compile":
		return runCompile(args[1:])
	case "inspect":
		return runInspect(args[1:])
	case "version":
		fmt.Printf("zekac version %s\n", version)
		return 0
	case "help", "-h", "-help", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "zekac: unknown command %q\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Print(`zekac - compile and inspect zeka rubric artifacts

USAGE:
    zekac compile [-o zeka.dat] [-decoys N] <rubric.yaml>
    zekac inspect <zeka.dat>
    zekac version

EXIT CODES:
    0  success
    2  rubric YAML validation failure
    3  duplicate title or malformed check (colliding commitment, bad regex)
`)
}

func runCompile(args []string) int {
	flags := flag.NewFlagSet("compile", flag.ContinueOnError)
	out := flags.String("o", "zeka.dat", "output artifact path")
	decoys := flags.Int("decoys", 0, "decoy points added to L1/L2 each (0 = default, negative disables)")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "zekac compile: rubric path required")
		return 2
	}
	rubricPath := flags.Arg(0)

	f, err := os.Open(rubricPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zekac: %v\n", err)
		return 2
	}
	defer f.Close()

	r, err := rubric.Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", rubricPath, err)
		return exitCodeFor(err)
	}

	// A rubric that omits "seed:" gets one from the system clock here,
	// at the CLI boundary: rubric.Parse has no clock access and leaves
	// Seed at 0, which rubric.Compile would otherwise silently turn
	// into the fixed commitment.DefaultSeed.
	if r.Seed == 0 {
		r.Seed = time.Now().UnixNano()
	}

	builder, err := rubric.Compile(r, rubric.CompileOptions{DecoyCount: *decoys})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", rubricPath, err)
		return exitCodeFor(err)
	}

	raw, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zekac: building artifact: %v\n", err)
		return 2
	}

	if err := os.WriteFile(*out, raw, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "zekac: writing %s: %v\n", *out, err)
		return 2
	}

	fmt.Printf("compiled %d checks into %s (%d bytes)\n", len(r.Checks), *out, len(raw))
	return 0
}

// exitCodeFor maps a rubric error to spec.md §9's compiler exit codes.
// Anything that isn't a *rubric.Error (a malformed regex surfaces as
// one; an I/O or encoding failure doesn't) is a plain validation
// failure.
func exitCodeFor(err error) int {
	var rerr *rubric.Error
	if errors.As(err, &rerr) && rerr.Code == rubric.CodeDuplicateOrMalformed {
		return 3
	}
	return 2
}

func runInspect(args []string) int {
	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "zekac inspect: artifact path required")
		return 2
	}

	art, err := artifact.Load(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "zekac: %v\n", err)
		return 2
	}

	h := art.Header
	fmt.Printf("title:            %s\n", art.Title())
	fmt.Printf("aead version:     %d\n", h.AEADVersion)
	fmt.Printf("prime bit length: %d\n", h.Prime().BitLen())
	fmt.Printf("seed:             %d\n", h.Seed)
	fmt.Printf("categories used:\n")
	for i, name := range artifact.CategoryNames {
		if h.Categories&(1<<uint(i)) != 0 {
			fmt.Printf("  - %s\n", name)
		}
	}
	fmt.Printf("L1 points:        %d\n", h.L1Count)
	fmt.Printf("L2 points:        %d\n", h.L2Count)
	fmt.Printf("L3 points:        %d\n", h.L3Count)
	fmt.Printf("variable nodes:   %d\n", len(art.VarTable))
	fmt.Printf("expressions:      %d\n", len(art.ExprTable))
	fmt.Printf("ciphertexts:      %d\n", len(art.CiphTable))
	fmt.Printf("automatons:       %d\n", len(art.AutomatonTbl))
	return 0
}
