// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestHandleLog(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf)
	h.now = func() time.Time {
		return time.Date(2024, 6, 20, 9, 30, 0, 0, time.UTC)
	}

	err := h.HandleLog(&log.Entry{
		Level:   log.WarnLevel,
		Message: "cache miss",
		Fields:  log.Fields{"name": "network.graphml", "format": "graph"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "2024-06-20 09:30:00 W cache miss format=graph name=network.graphml\n", buf.String())
}

func TestInitLogger_Level(t *testing.T) {
	tests := []struct {
		env  string
		want log.Level
	}{
		{env: "", want: log.ErrorLevel},
		{env: "debug", want: log.DebugLevel},
		{env: "INFO", want: log.InfoLevel},
		{env: "bogus", want: log.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("ISOCTL_LOG", tt.env)
			InitLogger()
			l, ok := log.Log.(*log.Logger)
			if assert.True(t, ok) {
				assert.Equal(t, tt.want, l.Level)
			}
		})
	}
}
