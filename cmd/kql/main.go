package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	kqle "github.com/secsim/go-kql"
	"github.com/secsim/go-kql/kql/annotations"
	"github.com/secsim/go-kql/kql/executor"
	"github.com/secsim/go-kql/seed"
)

func main() {
	var interactive bool
	var help bool
	var verbose bool
	var queryStr string
	var maxRows int64

	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show operator timings)")
	flag.StringVar(&queryStr, "query", "", "run a single query and exit")
	flag.Int64Var(&maxRows, "max-rows", 0, "cap intermediate row-set size (0 = unbounded)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A KQL query shell over synthetic security log tables.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -query 'SignInLogs | where Status == \"Failure\" | count'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -verbose -query 'SecurityAlert | summarize c = count() by AlertSeverity'\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	var handler annotations.Handler
	if verbose {
		formatter := annotations.NewOutputFormatter(os.Stderr)
		handler = formatter.Handle
	}

	engine := kqle.New(kqle.Config{MaxRows: maxRows, Handler: handler})
	if err := seed.Register(engine.Registry(), time.Now().UTC()); err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}

	if queryStr != "" {
		runQuery(engine, queryStr)
		return
	}
	if interactive {
		runInteractive(engine)
		return
	}
	flag.Usage()
}

func runQuery(engine *kqle.Engine, queryStr string) {
	rs, err := engine.ExecuteRowSet(queryStr)
	if err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
	fmt.Println(executor.NewTableFormatter().FormatRowSet(rs))
}

func runInteractive(engine *kqle.Engine) {
	tables := engine.Registry().List()
	fmt.Printf("Loaded %d tables: %s\n", len(tables), strings.Join(tables, ", "))
	fmt.Println("Enter a query, or 'exit' to quit.")

	prompt := color.New(color.FgGreen).SprintFunc()
	formatter := executor.NewTableFormatter()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(prompt("kql> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == "tables" {
			fmt.Println(strings.Join(engine.Registry().List(), "\n"))
			continue
		}

		start := time.Now()
		rs, err := engine.ExecuteRowSet(line)
		if err != nil {
			color.Red("%v", err)
			continue
		}
		fmt.Println(formatter.FormatRowSet(rs))
		fmt.Printf("(%s)\n", time.Since(start).Round(time.Microsecond))
	}
}
