package wallet

import (
	"github.com/smallbiznis/pxwallet/internal/wallet/repository"
	"github.com/smallbiznis/pxwallet/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.StoreFromService),
)
