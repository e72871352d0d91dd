package ports

import (
	"context"

	"github.com/carboncopyrefi/frf-front/core"
)

// Wallet is the external wallet-connection provider
type Wallet interface {
	Signal() core.WalletSignal
	// SignMessage returns the hex signature of message
	SignMessage(ctx context.Context, message string) (string, error)
}
