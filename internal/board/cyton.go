package board

import (
	"context"

	"github.com/Iron-Ham/eegrec/internal/errors"
)

// cyton stands in for the OpenBCI Cyton family. The channel map is known,
// but talking to the hardware requires the vendor's native backend, which is
// not linked into this binary. Prepare therefore fails: without connection
// parameters because the operator must supply them, and with them because no
// backend can use them.
type cyton struct {
	desc   Descriptor
	params Params
}

func (c *cyton) Descriptor() Descriptor { return c.desc }

func (c *cyton) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return c.err("prepare session", err)
	}
	if c.params.IsZero() {
		return c.err("prepare session", errors.ErrConnectionParamsRequired)
	}
	return c.err("prepare session on "+c.target(), errors.ErrBoardUnavailable)
}

func (c *cyton) StartStream(int) error {
	return c.err("start stream", errors.ErrInvalidTransition)
}

func (c *cyton) GetBoardData() (Matrix, error) {
	return nil, c.err("get board data", errors.ErrInvalidTransition)
}

func (c *cyton) StopStream() error {
	return c.err("stop stream", errors.ErrInvalidTransition)
}

func (c *cyton) Release() error {
	return c.err("release session", errors.ErrInvalidTransition)
}

func (c *cyton) target() string {
	switch {
	case c.params.SerialPort != "":
		return c.params.SerialPort
	case c.params.MACAddress != "":
		return c.params.MACAddress
	default:
		return c.params.IPAddress
	}
}

func (c *cyton) err(op string, cause error) error {
	return errors.NewBoardError(op, cause).WithBoard(c.desc.ID.String())
}
