package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// Renderer turns billing documents into PDF bytes.
type Renderer interface {
	RenderReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}
