// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/output"
)

// SearchFlagsValidator rejects flag combinations NewSearchFlags cannot honor.
func SearchFlagsValidator(_ context.Context, cmd *cli.Command) error {
	if cmd.IsSet("times") && cmd.Bool("full-times") {
		return errors.New("--times and --full-times are mutually exclusive")
	}
	return nil
}

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

// JammedFlagValidator verifies that the arg following a flag does not begin
// with '--'.  urfave/cli allows this and I don't see how to turn it off.
func JammedFlagValidator(value any) error {
	if strings.HasPrefix(value.(string), "--") {
		return errors.New("must not begin with '--'")
	}
	return nil
}

func OutputValidator(value any) error {
	if !slices.Contains(output.Formats, value.(string)) {
		return fmt.Errorf("must be one of %v", output.Formats)
	}
	return nil
}

func ArrivalTimeValidator(value any) error {
	if _, err := time.Parse(time.RFC3339, value.(string)); err != nil {
		return errors.New("must be an RFC 3339 timestamp with offset, e.g. 2024-06-29T09:30:00+10:00")
	}
	return nil
}

func TimesValidator(value any) error {
	_, err := parseTimes(value.(string))
	return err
}

func CoordsValidator(value any) error {
	if value.(string) == "" {
		return nil
	}
	_, err := parseCoords(value.(string))
	return err
}

func PositiveIntValidator(value any) error {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	}
	if n <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}
