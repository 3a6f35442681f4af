package notify

import (
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/boilermanc/onceuponadrawing/internal/config"
)

var Module = fx.Module("notify",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Notifier {
		if strings.TrimSpace(cfg.Notify.SendGridAPIKey) == "" {
			return Noop{}
		}
		return NewSendGridNotifier(cfg.Notify, log)
	}),
)
