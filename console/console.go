// Package console turns a terminal into a stream of single keystrokes.
package console

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
)

// Console reads keys from a file, in cbreak mode when it is a terminal.
type Console struct {
	in      io.Reader
	restore func() error
	log     blecentral.Logger
}

// Open puts f into cbreak mode: no line buffering and no echo, signals
// still delivered. Non-terminals are read as they are.
func Open(f *os.File) (*Console, error) {
	c := &Console{
		in:  f,
		log: blecentral.GetLogger().ChildLogger(map[string]interface{}{"component": "console"}),
	}

	restore, err := makeCbreak(int(f.Fd()))
	switch {
	case err == errNotTerminal:
		c.log.Debugf("%v is not a terminal, reading as is", f.Name())
	case err != nil:
		return nil, errors.Wrap(err, "console")
	default:
		c.restore = restore
	}
	return c, nil
}

// New reads keys from r without touching terminal settings.
func New(r io.Reader) *Console {
	return &Console{
		in:  r,
		log: blecentral.GetLogger().ChildLogger(map[string]interface{}{"component": "console"}),
	}
}

// Keys starts reading and delivers one byte per key. The channel is
// closed at end of input or once ctx is done.
func (c *Console) Keys(ctx context.Context) <-chan byte {
	ch := make(chan byte)
	go func() {
		defer close(ch)

		buf := make([]byte, 64)
		for {
			n, err := c.in.Read(buf)
			for _, b := range buf[:n] {
				select {
				case ch <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					c.log.Warnf("read: %v", err)
				}
				return
			}
		}
	}()
	return ch
}

// Close restores the terminal settings.
func (c *Console) Close() error {
	if c.restore == nil {
		return nil
	}
	err := c.restore()
	c.restore = nil
	return err
}
