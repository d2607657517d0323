package tsm

import (
	"context"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// downloadFrameSize is the payload size of one download frame.
const downloadFrameSize = 8 * 1024

// downloadQueueDepth bounds how far the file reader may run ahead of
// the stream sender; sends into the full queue block (backpressure).
const downloadQueueDepth = 1024

// Wire codes for BatchBytesResponse.Code.
const (
	DownloadSuccess int32 = 0
	DownloadFailed  int32 = 1
)

// BatchBytesResponse is one frame of a file download stream.
type BatchBytesResponse struct {
	Code int32
	Data []byte
}

// FileDownloadStream is the server-streaming send half of the download
// RPC; a gRPC server stream satisfies it.
type FileDownloadStream interface {
	Send(*BatchBytesResponse) error
}

// ServeFileDownload streams a finalized TSM file in fixed-size frames.
// A file that cannot be opened produces a single FAILED frame carrying
// the reason, then the stream closes. The file's CRC32 is computed as a
// side effect and logged for corruption triage.
func ServeFileDownload(ctx context.Context, logger log.Logger, path string, stream FileDownloadStream) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	f, err := os.Open(path)
	if err != nil {
		level.Error(logger).Log("msg", "download open failed", "file", path, "err", err)
		return stream.Send(&BatchBytesResponse{Code: DownloadFailed, Data: []byte(err.Error())})
	}
	defer f.Close()

	cr := newCRCReader(f, true)
	frames := make(chan []byte, downloadQueueDepth)
	readErr := make(chan error, 1)

	go func() {
		defer close(frames)
		for {
			buf := make([]byte, downloadFrameSize)
			n, err := io.ReadFull(cr, buf)
			if n > 0 {
				select {
				case frames <- buf[:n]:
				case <-ctx.Done():
					readErr <- ctx.Err()
					return
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var sent int64
	for frame := range frames {
		if err := stream.Send(&BatchBytesResponse{Code: DownloadSuccess, Data: frame}); err != nil {
			// Receiver went away; the reader goroutine unblocks via ctx
			// or by the drain below.
			go func() {
				for range frames {
				}
			}()
			return err
		}
		sent += int64(len(frame))
	}
	if err := <-readErr; err != nil {
		level.Error(logger).Log("msg", "download read failed", "file", path, "err", err)
		return stream.Send(&BatchBytesResponse{Code: DownloadFailed, Data: []byte(err.Error())})
	}

	level.Debug(logger).Log("msg", "download complete", "file", path, "bytes", sent, "crc32", cr.Checksum())
	return nil
}
