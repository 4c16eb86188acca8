package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zerolog.Level
		wantJSON  bool
		wantErr   bool
	}{
		{
			name:      "given defaults, then logs json at info",
			wantLevel: zerolog.InfoLevel,
			wantJSON:  true,
		},
		{
			name:      "given debug and json, then logs json at debug",
			level:     "DEBUG",
			format:    "json",
			wantLevel: zerolog.DebugLevel,
			wantJSON:  true,
		},
		{
			name:      "given pretty, then logs plain text",
			level:     "warn",
			format:    "pretty",
			wantLevel: zerolog.WarnLevel,
		},
		{
			name:    "given an unknown level, then fails",
			level:   "loud",
			wantErr: true,
		},
		{
			name:    "given an unknown format, then fails",
			level:   "info",
			format:  "xml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			l, err := NewWithWriter(&buf, tt.level, tt.format)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, l.GetLevel())

			l.WithLevel(tt.wantLevel).Msg("hello")
			out := buf.String()
			assert.Contains(t, out, "hello")
			assert.Equal(t, tt.wantJSON, strings.HasPrefix(out, "{"))
		})
	}
}
