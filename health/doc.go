// Package health provides health checking primitives.
//
// A Checker reports Healthy, Degraded or Unhealthy. Key caches are the main
// checkers in toolgate: a cache serving a stale key set inside its grace
// window reports Degraded, a cache with no usable keys reports Unhealthy.
//
//	agg := health.NewAggregator(5 * time.Second)
//	for _, c := range keyring.Caches() {
//	    agg.Register(c)
//	}
//	health.RegisterHandlers(mux, agg)
//
// RegisterHandlers exposes /healthz (liveness), /readyz (readiness),
// /health (all checks as JSON) and /health/{name}.
package health
