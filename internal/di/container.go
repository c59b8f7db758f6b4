// Package di provides dependency injection configuration for the jam
// queue client.
package di

import (
	"github.com/samber/do/v2"

	"github.com/jamqueueapp/jamqueue-client/internal/di/providers"
)

// NewContainer creates and configures the DI container with all
// providers. Invocation is lazy; nothing is constructed here.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Server access
	do.Provide(injector, providers.ProvideAPIClient)

	// Client state
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideSession)

	// Broadcast channel
	do.Provide(injector, providers.ProvideSubscription)
	do.Provide(injector, providers.ProvideController)

	return injector
}
