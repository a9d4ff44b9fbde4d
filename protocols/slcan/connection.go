package slcan

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Connection provides line-level access to an SLCAN adapter over a serial
// style link. Writes are serialized; reads return raw chunks with no frame
// alignment, to be fed through a Reassembler.
type Connection struct {
	serialPort io.ReadWriteCloser
	logger     Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

const (
	// ConnectionBaudRate is the default baud rate (bits/s) of the serial link.
	ConnectionBaudRate int = 115200
	// ConnectionDataBits is the data bit setting (bits/word) used for the serial link.
	ConnectionDataBits int = 8
	// ConnectionReadTimeout is how long a single port read blocks before
	// returning with no data. NextChunk keeps reading until data arrives.
	ConnectionReadTimeout time.Duration = time.Millisecond * 100
	// ChunkSize is the size of the buffer handed to each port read.
	ChunkSize int = 512
)

var (
	// ErrPortClosed is returned when the connection was closed.
	ErrPortClosed = errors.New("port closed")

	// ErrShortWrite is returned when the port accepts only part of a line.
	ErrShortWrite = errors.New("short write")
)

// NewConnection returns a new Connection over the given port.
func NewConnection(serialPort io.ReadWriteCloser, l Logger) *Connection {
	if l == nil {
		l = NopLogger
	}
	return &Connection{
		serialPort: serialPort,
		logger:     l,
	}
}

// Send writes line followed by the delimiter.
func (c *Connection) Send(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrPortClosed
	}

	b := append([]byte(line), Delimiter)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.logger.Debugf("sending line: %s", line)
	n, err := c.serialPort.Write(b)
	if err != nil {
		return errors.Wrapf(err, "writing line %q", line)
	}
	if n != len(b) {
		return errors.Wrapf(ErrShortWrite, "only wrote %d bytes (line had %d bytes)", n, len(b))
	}
	return nil
}

type readResult struct {
	chunk string
	err   error
}

// NextChunk blocks until the port delivers data, the context is done, or the
// port fails. Reads that time out with no data are retried.
func (c *Connection) NextChunk(ctx context.Context) (string, error) {
	result := make(chan readResult, 1)
	go func() {
		buf := make([]byte, ChunkSize)
		for ctx.Err() == nil {
			n, err := c.serialPort.Read(buf)
			if n > 0 {
				c.logger.Debugf("read %d bytes", n)
				result <- readResult{string(buf[:n]), nil}
				return
			}
			if err != nil {
				if c.isClosed() {
					err = ErrPortClosed
				}
				result <- readResult{"", err}
				return
			}
		}
		result <- readResult{"", ctx.Err()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-result:
		return r.chunk, r.err
	}
}

// Close releases the port.
func (c *Connection) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Debugf("closing connection")
	if c.serialPort != nil {
		return c.serialPort.Close()
	}
	return nil
}

func (c *Connection) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}
