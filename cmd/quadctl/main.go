// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Command quadctl is the operator CLI: a migrate subcommand that walks
// on-disk file snapshots through internal/schema's version chain, and
// an agent subcommand that sends one prompt to a running opencode
// server for ad hoc grid inspection/automation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cu-library/overridefromenv"

	"github.com/quadratic-labs/qd-engine/internal/schema"
)

const (
	projectName = "quadctl"
	envPrefix   = "QUADCTL_"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		runMigrate(os.Args[2:])
	case "agent":
		runAgent(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		log.Printf("%q is not a valid subcommand.\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s\n", projectName)
	fmt.Fprintln(os.Stderr, "Subcommands:")
	fmt.Fprintln(os.Stderr, "  migrate  upgrade file snapshots to the current schema version")
	fmt.Fprintln(os.Stderr, "  agent    send one prompt to a local opencode server")
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	in := fs.String("in", "", "Path to a JSON array of {version, body} documents. Required.")
	out := fs.String("out", "", "Path to write the migrated JSON array. Defaults to stdout.")
	fs.Parse(args)

	if err := overridefromenv.Override(fs, envPrefix+"MIGRATE_"); err != nil {
		log.Fatalln(err)
	}
	if *in == "" {
		log.Fatal("FATAL: -in is required.")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("FATAL: read %s: %v\n", *in, err)
	}

	var docs []schema.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		log.Fatalf("FATAL: parse %s: %v\n", *in, err)
	}

	migrated, err := schema.MigrateAll(os.Stderr, docs)
	if err != nil {
		log.Fatalf("FATAL: migrate: %v\n", err)
	}

	encoded, err := json.MarshalIndent(migrated, "", "  ")
	if err != nil {
		log.Fatalf("FATAL: encode result: %v\n", err)
	}

	if *out == "" {
		fmt.Println(string(encoded))
		return
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		log.Fatalf("FATAL: write %s: %v\n", *out, err)
	}
	log.Printf("Migrated %d document(s) to schema %s, wrote %s.\n", len(migrated), schema.Current, *out)
}

func runAgent(args []string) {
	fs := flag.NewFlagSet("agent", flag.ExitOnError)
	baseURL := fs.String("server", "http://localhost:4096", "Base URL of a running opencode server.")
	model := fs.String("model", "", "provider/model to use, e.g. anthropic/claude-sonnet-4-5. Server default if empty.")
	title := fs.String("title", "quadctl session", "Title for the new session.")
	fs.Parse(args)

	if err := overridefromenv.Override(fs, envPrefix+"AGENT_"); err != nil {
		log.Fatalln(err)
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		log.Fatal("FATAL: a prompt is required, e.g. quadctl agent \"summarize Sheet1\"")
	}

	result, err := promptOnceViaOpencode(context.Background(), *baseURL, *title, *model, prompt)
	if err != nil {
		log.Fatalf("FATAL: %v\n", err)
	}
	fmt.Println(result)
}
