// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"sort"
	"strings"
)

type sortKey struct {
	name          string
	descending    bool
	caseSensitive bool
}

// SortDataset sorts rows in place by a comma-separated list of keys. A key
// prefixed with - sorts descending and one prefixed with ! compares strings
// case-sensitively. The sort is stable and an empty spec leaves rows as is.
func SortDataset(rows []Row, spec string) {
	if spec == "" {
		return
	}

	var keys []sortKey
	for _, k := range strings.Split(spec, ",") {
		k = strings.TrimSpace(k)
		var sk sortKey
		for len(k) > 0 && (k[0] == '-' || k[0] == '!') {
			if k[0] == '-' {
				sk.descending = true
			} else {
				sk.caseSensitive = true
			}
			k = k[1:]
		}
		if k == "" {
			continue
		}
		sk.name = k
		keys = append(keys, sk)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compare(rows[i][k.name], rows[j][k.name], k.caseSensitive)
			if c == 0 {
				continue
			}
			if k.descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compare orders numbers numerically and everything else as strings. nil
// sorts first.
func compare(a, b interface{}, caseSensitive bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if isNumber(a) && isNumber(b) {
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	if !caseSensitive {
		sa, sb = strings.ToLower(sa), strings.ToLower(sb)
	}
	return strings.Compare(sa, sb)
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}
