package dispatch

import (
	"context"

	"github.com/croftbay/pgscout/internal/toolreg"
)

// Direct calls registry entries in the same process. No network framing, no
// session; errors surface as their original typed values.
type Direct struct {
	reg *toolreg.Registry
}

func NewDirect(reg *toolreg.Registry) *Direct {
	return &Direct{reg: reg}
}

func (d *Direct) Tools(ctx context.Context) ([]toolreg.Descriptor, error) {
	return d.reg.List(), nil
}

func (d *Direct) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	return d.reg.Invoke(ctx, name, args)
}

func (d *Direct) Close() error { return nil }
