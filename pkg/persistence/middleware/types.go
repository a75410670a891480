package middleware

import "github.com/aretw0/teller/pkg/ports"

// Middleware allows wrapping an AccountStore to add behavior.
type Middleware func(ports.AccountStore) ports.AccountStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.AccountStore, mws ...Middleware) ports.AccountStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
