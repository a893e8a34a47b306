package httpapi

import (
	"github.com/samber/do/v2"

	"github.com/VladimirHumeniuk/custiq-backend/internal/config"
	"github.com/VladimirHumeniuk/custiq-backend/internal/session"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		svc := do.MustInvoke[*session.Service](i)
		return NewServer(cfg, svc), nil
	})
}
