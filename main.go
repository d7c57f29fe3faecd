// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/isoctl/internal/command"
	"github.com/staranto/isoctl/internal/config"
	mylog "github.com/staranto/isoctl/internal/log"
	"github.com/staranto/isoctl/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands a flag set from the config file. An @name argument
// selects <command>.<name>; without one <command>.defaults is used. The set's
// entries are inserted right after the command so explicit flags win.
func mangleArguments(args []string) []string {
	// Short-circuit for --help/-h, keeping a subcommand such as "cache ls".
	for _, a := range args {
		if a == "--help" || a == "-h" {
			help := append([]string{}, args[:2]...)
			if len(args) > 2 && !strings.HasPrefix(args[2], "-") && !strings.HasPrefix(args[2], "@") {
				help = append(help, args[2])
			}
			return append(help, "--help")
		}
	}

	set := "defaults"
	rest := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			continue
		}
		rest = append(rest, a)
	}

	// Subcommands such as "cache ls" keep their name ahead of the set.
	preamble := append([]string{}, args[:2]...)
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		preamble = append(preamble, rest[0])
		rest = rest[1:]
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)
	var expanded []string
	for _, arg := range setArgs {
		expanded = append(expanded, strings.Fields(arg)...)
	}

	out := append(preamble, expanded...) //nolint:gocritic
	out = append(out, rest...)

	log.Debugf("set=%s, args=%v", set, out)
	return out
}
