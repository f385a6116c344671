package pdf

import (
	"context"

	"go.uber.org/fx"
)

// Provider renders payment documents.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(func() Provider { return NewPDFProvider("BlsunTech") }),
)
