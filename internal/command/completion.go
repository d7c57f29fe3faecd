// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/meta"
)

const bashCompletionScript = `# bash completion for isoctl
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_isoctl()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "batch cache completion download isochrones --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--color -c --data-dir -d --filter -f --output -o --sort -s --titles -t"
    local mirror="--mirror-bucket --mirror-prefix --mirror-region --mirror-profile --mirror-endpoint"
    local search="--arrival-time --coords --destination -D --full-times --small --times"

    case "$cmd" in
        batch)
            local opts="$common $search"
            ;;
        cache)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "ls purge" -- "$cur") )
                return 0
            fi
            local opts="$common --hours"
            ;;
        download)
            local opts="$common $mirror --place -p --refresh -r --small"
            ;;
        isochrones)
            local opts="$common $mirror $search --app-id --api-key --place -p --refresh -r --skip-network"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then
        COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
        return 0
    fi

    if [[ "$prev" == "--data-dir" || "$prev" == "-d" ]]; then
        COMPREPLY=( $(compgen -o dirnames -- "$cur") )
        return 0
    fi

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _isoctl isoctl
`

const zshCompletionScript = `#compdef isoctl

_isoctl() {
  local -a cmds
  cmds=(
    'batch:print the time-map request body'
    'cache:inspect or purge the data directory'
    'download:download the boundary and walk network'
    'isochrones:fetch and save isochrones'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-d --data-dir)'{-d,--data-dir}'[data directory]:dir:_directories'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  )

  local -a search
  search=(
  '--arrival-time[RFC 3339 arrival time]:time'
  '--coords[destination as lat,lng]:coords'
  '(-D --destination)'{-D,--destination}'[destination to geocode]:destination'
  '--full-times[use the full list of travel times]'
  '--small[use the small preset]'
  '--times[travel times in minutes]:times'
  )

  local -a mirror
  mirror=(
  '--mirror-bucket[S3 bucket]:bucket'
  '--mirror-prefix[key prefix]:prefix'
  '--mirror-region[AWS region]:region'
  '--mirror-profile[AWS profile]:profile'
  '--mirror-endpoint[S3 endpoint]:url'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'isoctl commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    batch)
      _arguments -C $common $search
      ;;
    cache)
      _arguments -C $common '--hours[purge files older than]:hours' '1: :((ls purge))'
      ;;
    download)
      _arguments -C $common $mirror \
        '(-p --place)'{-p,--place}'[place]:place' \
        '(-r --refresh)'{-r,--refresh}'[fetch again]' \
        '--small[use the small preset]'
      ;;
    isochrones)
      _arguments -C $common $mirror $search \
        '--app-id[TravelTime application id]:id' \
        '--api-key[TravelTime API key]:key' \
        '(-p --place)'{-p,--place}'[place]:place' \
        '(-r --refresh)'{-r,--refresh}'[fetch again]' \
        '--skip-network[do not obtain the boundary and network]'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _isoctl isoctl
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	if shell == "" {
		// Try to detect from SHELL.
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	switch shell {
	case "bash":
		fmt.Fprint(stdout(cmd), bashCompletionScript)
	case "zsh":
		fmt.Fprint(stdout(cmd), zshCompletionScript)
	default:
		fmt.Fprintln(os.Stderr, "usage: isoctl completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "isoctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
