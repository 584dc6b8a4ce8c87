package serviceaccount

import (
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/repository"
	"github.com/smallbiznis/pxwallet/internal/serviceaccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("serviceaccount.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
