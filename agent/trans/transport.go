package trans

import (
	"context"
	"errors"
)

//go:generate mockgen -source=transport.go -destination=mock/transport.go -package=mock

// Transport is what the protocols need from the relay. Download returns the
// messages in the order they were sent.
type Transport interface {
	Download(ctx context.Context, filter Filter) ([]Message, error)
	MarkConsumed(ctx context.Context, owner string, uids []string) error
	Send(ctx context.Context, to string, msg Message) error
}

var (
	ErrNoOwner      = errors.New("message owner missing")
	ErrUnknownOwner = errors.New("unknown mailbox")
)
