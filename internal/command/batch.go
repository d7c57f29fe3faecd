// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/meta"
	"github.com/staranto/isoctl/internal/output"
)

// BatchCommandAction prints the time-map request body without sending it.
// Text output is the indented JSON body.
func BatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	origin, _, err := destinationCoords(ctx, cmd, newGeocoder(), presetFor(cmd))
	if err != nil {
		return err
	}

	batch, err := buildBatch(cmd, origin, time.Now())
	if err != nil {
		return err
	}

	return output.EmitDocument(stdout(cmd), cmd.String("output"), batch)
}

// BatchCommandBuilder constructs the cli.Command for "batch".
func BatchCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "print the time-map request body",
		UsageText: `isoctl batch [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append(NewSearchFlags("batch"), NewGlobalFlags("batch")...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := SearchFlagsValidator(ctx, c); err != nil {
				return err
			}
			return BatchCommandAction(ctx, c)
		},
	}
}
