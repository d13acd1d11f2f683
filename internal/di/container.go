// Package di provides dependency injection configuration for the watch command.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/watch/internal/di/providers"
	"github.com/listenupapp/watch/internal/session"
)

// NewContainer creates and configures the DI container for one invocation.
// args is the command line without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, providers.Args(args))

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Watch pipeline
	do.Provide(injector, providers.ProvideTarget)
	do.Provide(injector, providers.ProvideTrigger)
	do.Provide(injector, providers.ProvideChannel)
	do.Provide(injector, providers.ProvideSession)

	return injector
}

// Bootstrap builds the session and everything it depends on. The returned
// error keeps its class, so it can be turned into an exit status directly.
func Bootstrap(injector *do.RootScope) (*session.Session, error) {
	return do.Invoke[*session.Session](injector)
}
