package client

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/famomatic/ytfetch/internal/catalog"
	"github.com/famomatic/ytfetch/internal/transfer"
)

// TransferOptions tunes one transfer on top of the client-wide defaults.
type TransferOptions struct {
	// Progress, when set, is invoked after every written chunk.
	Progress func(transfer.Progress)
	// ResumeFromOffset restarts at a byte offset; the writer must
	// already be positioned to match.
	ResumeFromOffset int64
}

// Transfer streams the rendition's payload to w in order. Cancellation via
// ctx takes effect at chunk boundaries, so w always ends up holding a
// contiguous prefix.
func (c *Client) Transfer(ctx context.Context, stream *catalog.ResolvedStream, w io.Writer, opts TransferOptions) (*transfer.Session, error) {
	engineOpts := c.config.transferOptions()
	engineOpts.Progress = opts.Progress
	engineOpts.ResumeFromOffset = opts.ResumeFromOffset
	engineOpts.KnownTotal = stream.ContentLength
	engineOpts.SequencedFallback = stream.OTF
	return c.engine.Transfer(ctx, stream.URL, w, engineOpts)
}

// Download transfers the rendition to path. The payload lands in a .part
// file first and is renamed into place on completion; an interrupted
// download leaves the .part file behind and a later call resumes from its
// size.
func (c *Client) Download(ctx context.Context, stream *catalog.ResolvedStream, path string, opts TransferOptions) (*transfer.Session, error) {
	partPath := path + ".part"

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}
	// Segmented renditions cannot seek, so they always restart.
	if stream.OTF {
		offset = 0
	}

	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open partial file: %w", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek partial file: %w", err)
	}
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate partial file: %w", err)
	}

	opts.ResumeFromOffset = offset
	session, terr := c.Transfer(ctx, stream, f, opts)
	if cerr := f.Close(); terr == nil && cerr != nil {
		terr = cerr
	}
	if terr != nil {
		// Keep the .part file so a retry can resume.
		return session, terr
	}

	if err := os.Rename(partPath, path); err != nil {
		return session, fmt.Errorf("finalize download: %w", err)
	}
	c.log.Info("download complete", "path", path, "bytes", session.Progress().BytesWritten)
	return session, nil
}
