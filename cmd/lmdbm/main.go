// Package main provides the lmdbm CLI tool for inspecting and maintaining
// lmdbm stores.
//
// Usage:
//
//	lmdbm --path=<dir> [options] <command> [args]
//
// Commands:
//
//	get <key>          Print the value of a key
//	put <key> <value>  Store a key-value pair
//	delete <key>       Delete a key
//	pop <key>          Delete a key and print its prior value
//	scan               Print all key-value pairs
//	stat               Print store information
//	load <file>        Bulk load tab separated key/value lines
//	backup <dst>       Copy the store into a new directory
//	verify             Decode every value and report corrupt keys
//	remove             Remove the store files and directory
//
// Keys and values prefixed with 0x are decoded as hex. On compressed stores,
// other keys are encoded as Latin-1 text.
//
// Every option can also be set from the environment, e.g. LMDBM_PATH,
// LMDBM_COMPRESS or LMDBM_LOG_LEVEL.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagErr.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command, writing command
// output to out.
func run(args []string, out io.Writer) error {
	var c = &cli{out: out}
	var parser = newParser(c)
	_, err := parser.ParseArgs(args)
	return err
}

func newParser(c *cli) *flags.Parser {
	var parser = flags.NewParser(c, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "lmdbm"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := initLog(c.Log); err != nil {
			return err
		}
		return cmd.Execute(args)
	}

	for _, sub := range []struct {
		name, short, long string
		cmd               any
	}{
		{"get", "Print the value of a key", "", &cmdGet{cli: c}},
		{"put", "Store a key-value pair", "", &cmdPut{cli: c}},
		{"delete", "Delete a key", "Deleting an absent key is not an error.", &cmdDelete{cli: c}},
		{"pop", "Delete a key and print its prior value", "", &cmdPop{cli: c}},
		{"scan", "Print all key-value pairs", "", &cmdScan{cli: c}},
		{"stat", "Print store information", "", &cmdStat{cli: c}},
		{"load", "Bulk load tab separated key/value lines", `
Reads lines of the form KEY<TAB>VALUE from FILE (or stdin, for -) and writes
them in a single transaction, growing the map as needed.
`, &cmdLoad{cli: c}},
		{"backup", "Copy the store into a new directory", "", &cmdBackup{cli: c}},
		{"verify", "Decode every value and report corrupt keys", "", &cmdVerify{cli: c}},
		{"remove", "Remove the store files and directory", "", &cmdRemove{cli: c}},
	} {
		var long = sub.long
		if long == "" {
			long = sub.short
		}
		if _, err := parser.AddCommand(sub.name, sub.short, long, sub.cmd); err != nil {
			panic(err) // Developer error in command definitions.
		}
	}
	return parser
}
