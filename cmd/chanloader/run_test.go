package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/chanloader/chan4"
	"github.com/kroma-labs/chanloader/failure"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/boards.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"boards": [{"board": "g", "title": "Technology", "ws_board": 1}]}`)
	})
	mux.HandleFunc("/g/thread/1.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"posts": [{"no": 1, "resto": 0, "com": "first<br>post"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("CHANLOADER_API_BASE", srv.URL)
	t.Setenv("CHANLOADER_RATE_LIMIT_RPS", "0")
	t.Setenv("CHANLOADER_RETRY_MAX", "0")
	return srv
}

func TestRun(t *testing.T) {
	newTestServer(t)

	tests := []struct {
		name       string
		args       []string
		wantOut    []string
		wantErr    error
		wantErrMsg string
	}{
		{
			name:    "given boards, then prints the board list",
			args:    []string{"boards"},
			wantOut: []string{`"board": "g"`, `"title": "Technology"`},
		},
		{
			name:    "given a live thread, then prints rendered posts",
			args:    []string{"--log-level", "error", "thread", "g", "1"},
			wantOut: []string{`"no": 1`, `"comment": "first\npost"`},
		},
		{
			name:       "given a missing thread, then fails with not found",
			args:       []string{"thread", "g", "2"},
			wantErrMsg: failure.KindNotFound.Message(),
		},
		{
			name:    "given a bad board, then fails before any request",
			args:    []string{"catalog", "G"},
			wantErr: chan4.ErrInvalidBoard,
		},
		{
			name:    "given a non-numeric post, then fails",
			args:    []string{"thread", "g", "abc"},
			wantErr: chan4.ErrInvalidPost,
		},
		{
			name:    "given no command, then fails with usage",
			args:    nil,
			wantErr: errUsage,
		},
		{
			name:    "given an unknown command, then fails with usage",
			args:    []string{"archive", "g"},
			wantErr: errUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			err := run(context.Background(), tt.args, &stdout, &stderr)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				f, ok := failure.As(err)
				require.True(t, ok)
				assert.True(t, f.IsNotFound())
			default:
				require.NoError(t, err)
				for _, want := range tt.wantOut {
					assert.Contains(t, stdout.String(), want)
				}
			}
		})
	}
}

func TestRun_MetricsAddressInUse(t *testing.T) {
	newTestServer(t)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	var stdout, stderr bytes.Buffer
	err = run(context.Background(), []string{"--metrics-addr", taken.Addr().String(), "boards"}, &stdout, &stderr)

	require.Error(t, err)
	assert.Contains(t, err.Error(), taken.Addr().String())
	assert.Empty(t, stdout.String())
}
