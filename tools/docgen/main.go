// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/command"
)

// Doc generator. Walks the isoctl command tree and writes:
//   - docs/commands/isoctl-<cmd>.md, the markdown source
//   - docs/man/share/man1/isoctl-<cmd>.1 via md2man
//   - docs/tldr/isoctl-<cmd>.md from the usage line and examples

// examples are the quick examples of each command, keyed by its full name.
var examples = map[string][]example{
	"download": {
		{Desc: "Download the Sydney boundary and walk network", Cmd: "isoctl download"},
		{Desc: "Download the small Parramatta preset again", Cmd: "isoctl download --small --refresh"},
	},
	"isochrones": {
		{Desc: "Fetch isochrones to Central Station", Cmd: "isoctl isochrones"},
		{Desc: "Fetch the full set of travel times", Cmd: "isoctl isochrones --full-times"},
		{Desc: "Fetch isochrones to a coordinate without the network", Cmd: "isoctl isochrones --coords {{-33.8832,151.2067}} --skip-network"},
	},
	"batch": {
		{Desc: "Print the request body as YAML", Cmd: "isoctl batch --times {{10,20}} -o yaml"},
	},
	"cache ls": {
		{Desc: "List cached files, largest first", Cmd: "isoctl cache ls -s -bytes"},
	},
	"cache purge": {
		{Desc: "Remove files older than a day", Cmd: "isoctl cache purge --hours {{24}}"},
	},
}

type example struct {
	Desc string
	Cmd  string
}

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	mdOutDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir := filepath.Join(repoRoot, "docs", "tldr")

	for _, d := range []string{mdOutDir, manOutDir, tldrOutDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			fatalf("creating output dir %s: %v", d, err)
		}
	}

	app, err := command.InitApp(context.Background(), []string{"isoctl"})
	if err != nil {
		fatalf("building command tree: %v", err)
	}

	var processed int
	for _, c := range leaves(app.Commands, "") {
		slug := strings.ReplaceAll(c.name, " ", "-")

		md := buildMarkdown(c.name, c.cmd, examples[c.name])
		mdPath := filepath.Join(mdOutDir, "isoctl-"+slug+".md")
		if err := writeFileIfChanged(mdPath, []byte(md), writeOnlyIfChanged); err != nil {
			fatalf("writing markdown for %s: %v", c.name, err)
		}

		manPath := filepath.Join(manOutDir, "isoctl-"+slug+".1")
		if err := writeFileIfChanged(manPath, md2man.Render([]byte(md)), writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", c.name, err)
		}

		tldr := buildTLDR(slug, c.cmd.Usage, examples[c.name])
		tldrPath := filepath.Join(tldrOutDir, "isoctl-"+slug+".md")
		if err := writeFileIfChanged(tldrPath, []byte(tldr), writeOnlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", c.name, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no commands found")
	}
}

type named struct {
	name string
	cmd  *cli.Command
}

// leaves flattens the tree to the commands that have an action.
func leaves(cmds []*cli.Command, prefix string) []named {
	var out []named
	for _, c := range cmds {
		name := strings.TrimSpace(prefix + " " + c.Name)
		if len(c.Commands) > 0 {
			out = append(out, leaves(c.Commands, name)...)
			continue
		}
		out = append(out, named{name: name, cmd: c})
	}
	return out
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}

func buildMarkdown(name string, c *cli.Command, exs []example) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# isoctl %s\n\n", name)
	b.WriteString("## Short description\n\n")
	b.WriteString(c.Usage + "\n\n")

	b.WriteString("## Synopsis\n\n")
	b.WriteString("`" + c.UsageText + "`\n\n")

	if len(c.Flags) > 0 {
		b.WriteString("## Options\n\n")
		for _, f := range c.Flags {
			names := f.Names()
			for i, n := range names {
				if len(n) == 1 {
					names[i] = "-" + n
				} else {
					names[i] = "--" + n
				}
			}
			usage := ""
			if d, ok := f.(cli.DocGenerationFlag); ok {
				usage = d.GetUsage()
			}
			fmt.Fprintf(&b, "- `%s`: %s\n", strings.Join(names, ", "), usage)
		}
		b.WriteString("\n")
	}

	if len(exs) > 0 {
		b.WriteString("## Quick examples\n\n```\n")
		for _, ex := range exs {
			b.WriteString("# " + ex.Desc + "\n")
			b.WriteString(ex.Cmd + "\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

func buildTLDR(slug, short string, exs []example) string {
	var b strings.Builder
	b.WriteString("# isoctl-" + slug + "\n\n")
	if short != "" {
		b.WriteString("> " + strings.ToUpper(short[:1]) + short[1:] + ".\n")
	} else {
		b.WriteString("> isoctl " + slug + "\n")
	}
	b.WriteString("> More information: https://github.com/staranto/isoctl.\n\n")

	if len(exs) == 0 {
		b.WriteString("- Show help for the command:\n\n")
		b.WriteString("`isoctl " + strings.ReplaceAll(slug, "-", " ") + " --help`\n")
		return b.String()
	}

	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + strings.TrimSpace(ex.Desc) + ":\n\n")
		b.WriteString("`" + strings.Join(strings.Fields(ex.Cmd), " ") + "`\n")
	}
	return b.String()
}
