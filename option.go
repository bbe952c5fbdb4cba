package crowdmind

import (
	"github.com/crowdmind/crowdmind/clients"
	"github.com/crowdmind/crowdmind/logger"
	"github.com/crowdmind/crowdmind/metrics"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

// Option customizes agent construction.
type Option func(*Agent)

// WithLogger replaces the default zap logger.
func WithLogger(log logger.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithMetrics replaces the default metrics recorder.
func WithMetrics(rec metrics.Recorder) Option {
	return func(a *Agent) { a.rec = rec }
}

// WithStore replaces the default bbolt store, mainly for tests.
func WithStore(st store.Store) Option {
	return func(a *Agent) { a.store = st }
}

// WithClient registers a chain client, bypassing construction from
// chain configuration. May be repeated for multiple chains.
func WithClient(chain types.ChainType, client clients.Client) Option {
	return func(a *Agent) {
		if a.clients == nil {
			a.clients = clients.NewRegistry()
		}
		a.clients.Add(chain, client)
	}
}
