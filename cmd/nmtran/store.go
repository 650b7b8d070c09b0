package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pharmflow/go-nmtran/library"
	"github.com/pharmflow/go-nmtran/nonmem"
)

func store(args []string) error {
	if len(args) < 1 {
		storeUsage()
		return fmt.Errorf("store subcommand required")
	}
	switch args[0] {
	case "save":
		return storeSave(args[1:])
	case "list":
		return storeList(args[1:])
	case "show":
		return storeShow(args[1:])
	case "help", "-h", "--help":
		storeUsage()
		return nil
	default:
		storeUsage()
		return fmt.Errorf("unknown store subcommand: %s", args[0])
	}
}

func storeUsage() {
	fmt.Fprintf(os.Stderr, `Usage: nmtran store <save|list|show> [options]

Save and retrieve model versions from a SQLite library database.

Subcommands:
  save <model.mod>   Save a model version with its parameter snapshot
  list               List stored versions, newest first
  show <id>          Print the stored control stream

Examples:
  nmtran store save run1.mod --db models.db --message "base model"
  nmtran store list --db models.db
  nmtran store show 2f9c... --db models.db
`)
}

func storeSave(args []string) error {
	fs := flag.NewFlagSet("store save", flag.ExitOnError)
	dbPath := fs.String("db", "models.db", "Library database path")
	message := fs.String("message", "", "Description for this version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("model file required")
	}

	m, err := nonmem.ReadModel(fs.Arg(0), nonmem.DefaultConfig())
	if err != nil {
		return fmt.Errorf("parse model: %w", err)
	}

	s, err := library.Open(*dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.SaveModel(m, *message)
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	fmt.Printf("Saved %s as %s\n", m.Name(), id)
	return nil
}

func storeList(args []string) error {
	fs := flag.NewFlagSet("store list", flag.ExitOnError)
	dbPath := fs.String("db", "models.db", "Library database path")
	limit := fs.Int("limit", 20, "Maximum number of entries to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := library.Open(*dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(*limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-16s %s  %s\n", e.ID, e.Name, e.CreatedAt.Format("2006-01-02 15:04"), e.Description)
	}
	return nil
}

func storeShow(args []string) error {
	fs := flag.NewFlagSet("store show", flag.ExitOnError)
	dbPath := fs.String("db", "models.db", "Library database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("entry id required")
	}

	s, err := library.Open(*dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := s.Get(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	fmt.Print(e.Code)
	return nil
}
