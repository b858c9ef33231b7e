package heroparser

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// CompressedWriter wraps a Writer's destination in an lz4 frame so bulk
// ingestion pipelines can spool staged output to disk without a separate
// compression pass. It satisfies io.WriteCloser: Close flushes and closes
// the lz4 frame, but does not close the underlying sink.
type CompressedWriter struct {
	lz *lz4.Writer
}

// NewCompressedWriter returns an io.WriteCloser that compresses everything
// written to it with lz4 before forwarding to sink. Wrap its result with
// NewWriter (or NewWriterWithOptions) to get a CSV Writer whose output is
// transparently compressed on the wire.
func NewCompressedWriter(sink io.Writer) *CompressedWriter {
	return &CompressedWriter{lz: lz4.NewWriter(sink)}
}

func (c *CompressedWriter) Write(p []byte) (int, error) {
	return c.lz.Write(p)
}

// Close flushes and closes the lz4 frame. The underlying sink passed to
// NewCompressedWriter is left open for the caller to close.
func (c *CompressedWriter) Close() error {
	return c.lz.Close()
}

// SetCompressionLevel configures the lz4 frame's compression level before
// the first Write; see github.com/pierrec/lz4/v4's Level constants.
func (c *CompressedWriter) SetCompressionLevel(level lz4.CompressionLevel) {
	c.lz.Apply(lz4.CompressionLevelOption(level))
}
