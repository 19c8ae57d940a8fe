package tele

import (
	"context"

	"github.com/temoto/loragate/log2"
)

// Transporter contract:
//   - Init fails only with invalid config, ignores network errors
//   - Send delivers within ctx deadline or fails; success includes ack from receiver
//   - application may start without network available
type Transporter interface {
	Name() string
	Init(ctx context.Context, log *log2.Log, config Config) error
	Send(ctx context.Context, r *Reading) error
	Close()
}
