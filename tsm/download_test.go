package tsm

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type collectStream struct {
	frames []*BatchBytesResponse
}

func (s *collectStream) Send(r *BatchBytesResponse) error {
	s.frames = append(s.frames, r)
	return nil
}

func TestServeFileDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.tsm")
	content := bytes.Repeat([]byte{0xAB}, 2*downloadFrameSize+100)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	stream := &collectStream{}
	require.NoError(t, ServeFileDownload(context.Background(), nil, path, stream))

	require.Len(t, stream.frames, 3)
	var got []byte
	for _, f := range stream.frames {
		require.Equal(t, DownloadSuccess, f.Code)
		got = append(got, f.Data...)
	}
	require.Equal(t, len(content), len(got))
	require.Equal(t, content, got)
	require.Len(t, stream.frames[0].Data, downloadFrameSize)
	require.Len(t, stream.frames[2].Data, 100)
}

func TestServeFileDownloadOpenFailure(t *testing.T) {
	stream := &collectStream{}
	err := ServeFileDownload(context.Background(), nil, filepath.Join(t.TempDir(), "missing.tsm"), stream)
	require.NoError(t, err)
	require.Len(t, stream.frames, 1)
	require.Equal(t, DownloadFailed, stream.frames[0].Code)
	require.NotEmpty(t, stream.frames[0].Data)
}
