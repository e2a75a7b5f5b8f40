package fence

import (
	"log/slog"
	"time"

	"github.com/appfence/fence/plugin"
	"github.com/appfence/fence/store"
)

// Option is a functional option for the Broker.
type Option func(*Broker)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(b *Broker) { b.store = s } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(b *Broker) { b.logger = l } }

// WithConfig sets the broker configuration.
func WithConfig(c Config) Option { return func(b *Broker) { b.config = c } }

// WithVerifier sets the caller verifier consulted before any policy
// logic.
func WithVerifier(v Verifier) Option { return func(b *Broker) { b.verifier = v } }

// WithAuthorizer sets the gate consulted on policy management calls.
func WithAuthorizer(a Authorizer) Option { return func(b *Broker) { b.authorizer = a } }

// WithClock sets the time source. Intended for tests.
func WithClock(now func() time.Time) Option { return func(b *Broker) { b.now = now } }

// WithPlugin registers a plugin with the broker.
func WithPlugin(x plugin.Plugin) Option {
	return func(b *Broker) {
		if b.plugins == nil {
			b.plugins = plugin.NewRegistry(b.logger)
		}
		b.plugins.Register(x)
	}
}
