package docstore

import (
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("docstore",
	fx.Provide(func(cfg config.Config) *LocalStore {
		return NewLocalStore(cfg.Storage.Dir, cfg.Storage.BaseURL, cfg.Storage.SignSecret)
	}),
	fx.Provide(func(store *LocalStore) Store {
		return store
	}),
)
