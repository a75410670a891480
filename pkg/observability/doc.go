/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Both producers return domain.LifecycleHooks, and Chain fans a single set of
engine callbacks out to any number of them:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Chain(metrics.Hooks(), observability.LogHooks(logger))
	eng := teller.New(g, teller.WithLifecycleHooks(hooks))
*/
package observability
