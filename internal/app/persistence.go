package app

import (
	"fmt"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/config"
	"github.com/comalice/fractalx/internal/production"
)

// OpenPersister opens the persister cfg selects. The returned close func is
// never nil. Driver "none" yields a nil persister.
func OpenPersister(cfg config.PersistenceConfig) (fractalx.Persister, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", "none":
		return nil, noop, nil
	case "json":
		p, err := production.NewJSONPersister(cfg.Dir)
		return p, noop, err
	case "yaml":
		p, err := production.NewYAMLPersister(cfg.Dir)
		return p, noop, err
	case "badger":
		p, err := production.OpenBadgerPersister(cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}
