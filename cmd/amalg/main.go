// Amalgraph CLI - evaluate expressions against entities on disk.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/amalgraph/asset"
	"github.com/chazu/amalgraph/concurrency"
	"github.com/chazu/amalgraph/config"
	"github.com/chazu/amalgraph/entity"
	"github.com/chazu/amalgraph/graph"
	"github.com/chazu/amalgraph/intern"
	"github.com/chazu/amalgraph/interp"
	"github.com/chazu/amalgraph/parse"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	entityPath := flag.String("e", "", "Entity file to load as the evaluation context")
	expr := flag.String("x", "", "Expression to evaluate")
	storeBack := flag.Bool("store", false, "Store the entity back to its file after evaluation")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: amalg [options] [file.amlg]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates an expression or program file against an entity.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  amalg -x '(+ 1 2 3)'              # Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  amalg -e world.amlg -x '(retrieve \"x\")'\n")
		fmt.Fprintf(os.Stderr, "  amalg -e world.amlg -i            # REPL inside an entity\n")
		fmt.Fprintf(os.Stderr, "  amalg program.amlg                # Run a program file\n")
	}
	flag.Parse()

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	pool := intern.New()
	var root *entity.Entity
	if *entityPath != "" {
		loaded, status := asset.LoadEntity(*entityPath, "root", pool)
		if !status.Loaded {
			fmt.Fprintf(os.Stderr, "Error loading entity: %s\n", status.Message)
			os.Exit(1)
		}
		root = loaded
		if *verbose {
			fmt.Printf("Loaded entity from %s (version %s)\n", *entityPath, status.Version)
		}
	} else {
		root = entity.New("root", pool, "")
	}
	root.RootPermission = true

	threads := concurrency.New(cfg.Engine.ThreadPoolSize)
	constraints := &graph.Constraints{
		MaxExecutionSteps:       cfg.Constraints.MaxExecutionSteps,
		MaxAllocatedNodes:       cfg.Constraints.MaxAllocatedNodes,
		MaxOpcodeDepth:          cfg.Constraints.MaxOpcodeDepth,
		MaxContainedEntities:    cfg.Constraints.MaxContainedEntities,
		MaxContainedEntityDepth: cfg.Constraints.MaxContainedEntityDepth,
		MaxEntityIDLength:       cfg.Constraints.MaxEntityIDLength,
	}

	run := func(source, name string) bool {
		program, parseErr := parse.Parse(source, root.Manager, pool, name, *verbose)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "%v\n", parseErr)
			return false
		}
		ip := interp.New(root, threads)
		ip.Constraints = constraints
		root.Manager.SetConstraints(constraints)
		result := ip.Execute(program)
		root.Manager.SetConstraints(nil)
		fmt.Println(parse.Unparse(result.Node, pool, parse.UnparseOptions{SortKeys: true}))
		return true
	}

	ok := true
	switch {
	case *expr != "":
		ok = run(*expr, "<cmdline>")
	case *interactive:
		repl(run)
	case flag.NArg() > 0:
		for _, file := range flag.Args() {
			data, readErr := os.ReadFile(file)
			if readErr != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", file, readErr)
				os.Exit(1)
			}
			if !run(string(data), file) {
				ok = false
			}
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if *storeBack && *entityPath != "" {
		if err := asset.StoreEntity(*entityPath, root); err != nil {
			fmt.Fprintf(os.Stderr, "Error storing entity: %v\n", err)
			os.Exit(1)
		}
	}
	if !ok {
		os.Exit(1)
	}
}

func repl(run func(source, name string) bool) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return
		}
		if line != "" {
			run(line, "<repl>")
		}
		fmt.Print("> ")
	}
}
