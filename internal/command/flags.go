// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/cacheutil"
	"github.com/staranto/isoctl/internal/config"
	"github.com/staranto/isoctl/internal/output"
)

func init() {
	cfg, _ = config.Load("")
}

var cfg config.Type

// NewGlobalFlags returns the flags shared by every command. params[0] is the
// command name, used as the config namespace.
func NewGlobalFlags(params ...string) (flags []cli.Flag) {
	ns := params[0]

	flags = []cli.Flag{
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"color", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("color", altsrc.StringSourcer(cfg.Source)),
			),
			Value: output.IsTerminal(os.Stdout),
		},
		NewDataDirFlag(ns),
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"output", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("output", altsrc.StringSourcer(cfg.Source)),
			),
			Value: "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"sort", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: cli.NewValueSourceChain(
				yaml.YAML(ns+"."+"titles", altsrc.StringSourcer(cfg.Source)),
				yaml.YAML("titles", altsrc.StringSourcer(cfg.Source)),
			),
			Value: true,
		},
	}

	return
}

// NewDataDirFlag constructs the --data-dir flag. The environment wins over
// the namespaced and global config file keys.
func NewDataDirFlag(ns string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Usage:   "directory holding downloaded and generated data",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ISOCTL_DATA_DIR"),
			yaml.YAML(ns+"."+"data_dir", altsrc.StringSourcer(cfg.Source)),
			yaml.YAML("data_dir", altsrc.StringSourcer(cfg.Source)),
		),
		Value: cacheutil.DefaultDir,
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator)
		},
	}
}

// NewSmallFlag selects the small Parramatta preset.
func NewSmallFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "small",
		Usage:       "use the small Parramatta preset and *_small file names",
		Sources:     cli.EnvVars("ISOCTL_SMALL"),
		HideDefault: true,
	}
}

// NewRefreshFlag forces cached files to be rebuilt.
func NewRefreshFlag(what string) *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "refresh",
		Aliases:     []string{"r"},
		Usage:       "discard cached " + what + " and fetch again",
		HideDefault: true,
	}
}

// NewPlaceFlag names the area whose boundary and street network are used.
// An empty value means the preset place.
func NewPlaceFlag(ns string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "place",
		Aliases: []string{"p"},
		Usage:   "place whose boundary and walk network are downloaded",
		Sources: cli.NewValueSourceChain(
			cli.EnvVar("ISOCTL_PLACE"),
		),
		Validator: func(value string) error {
			return FlagValidators(value, JammedFlagValidator)
		},
	}
	return NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, flag)
}

// NewMirrorFlags returns the flags configuring the optional S3 mirror of the
// data directory. They read mirror.<name> from the config file.
func NewMirrorFlags() []cli.Flag {
	mirrorFlag := func(name, env, usage string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:  "mirror-" + name,
			Usage: usage,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar(env),
				yaml.YAML("mirror."+name, altsrc.StringSourcer(cfg.Source)),
			),
		}
	}

	return []cli.Flag{
		mirrorFlag("bucket", "ISOCTL_MIRROR_BUCKET", "S3 bucket mirroring the data directory"),
		mirrorFlag("prefix", "ISOCTL_MIRROR_PREFIX", "key prefix within the mirror bucket"),
		mirrorFlag("region", "ISOCTL_MIRROR_REGION", "AWS region of the mirror bucket"),
		mirrorFlag("profile", "ISOCTL_MIRROR_PROFILE", "AWS shared config profile for the mirror"),
		mirrorFlag("endpoint", "ISOCTL_MIRROR_ENDPOINT", "S3-compatible endpoint URL for the mirror"),
	}
}

// NewCredentialFlags returns --app-id and --api-key. When neither flag nor
// config sets them, the usual environment variables are consulted.
func NewCredentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "app-id",
			Usage: "TravelTime application id (default $TRAVELTIME_APPLICATION_ID or $APP_ID)",
			Sources: cli.NewValueSourceChain(
				yaml.YAML("traveltime.application_id", altsrc.StringSourcer(cfg.Source)),
			),
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "TravelTime API key (default $TRAVELTIME_API_KEY or $API_KEY)",
			Sources: cli.NewValueSourceChain(
				yaml.YAML("traveltime.api_key", altsrc.StringSourcer(cfg.Source)),
			),
		},
	}
}

// NewSearchFlags returns the flags describing an isochrone search, shared by
// the isochrones and batch commands.
func NewSearchFlags(ns string) []cli.Flag {
	return []cli.Flag{
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:  "arrival-time",
			Usage: "RFC 3339 arrival time, replaced by now when more than two weeks away",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ISOCTL_ARRIVAL_TIME"),
			),
			Value: DefaultArrivalTime,
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, ArrivalTimeValidator)
			},
		}),
		&cli.StringFlag{
			Name:  "coords",
			Usage: "destination as lat,lng. Skips geocoding",
			Validator: func(value string) error {
				return FlagValidators(value, CoordsValidator)
			},
		},
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:    "destination",
			Aliases: []string{"D"},
			Usage:   "destination to geocode. Defaults to the preset station",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ISOCTL_DESTINATION"),
			),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		}),
		&cli.BoolFlag{
			Name:        "full-times",
			Usage:       "use the full list of travel times",
			HideDefault: true,
		},
		NewSmallFlag(),
		NameSpacedValueChainFlagFromConfigFile(ns, cfg.Source, &cli.StringFlag{
			Name:  "times",
			Usage: "comma-separated travel times in minutes",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("ISOCTL_TIMES"),
			),
			Validator: func(value string) error {
				return FlagValidators(value, TimesValidator)
			},
		}),
	}
}

// NameSpacedValueChainFlagFromConfigFile adds namespaced and global config file
// sources to the given flag's Sources chain.
func NameSpacedValueChainFlagFromConfigFile(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	src := yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	src = yaml.YAML(flag.Name, altsrc.StringSourcer(path))
	flag.Sources.Chain = append(flag.Sources.Chain, src)

	return flag
}
