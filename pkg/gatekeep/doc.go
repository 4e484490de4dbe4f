// Package gatekeep provides HTTP admission control: per-client token
// bucket rate limiting with proxy-aware client identification and bounded
// memory use.
//
// Every bucket is keyed on a client identity derived from the request,
// holds up to burst_size tokens, and refills at refill_rate tokens per
// second. An admitted request spends one token; a request that finds the
// bucket empty is denied with a Retry-After hint. A background evictor
// removes buckets that have sat idle past the eviction horizon, so memory
// stays proportional to the set of recently active clients.
//
// # Quick start
//
//	limiter, err := gatekeep.New(
//	    gatekeep.WithPolicy(2, 4.0), // burst 2, 4 tokens/sec
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	limiter.StartEvictor(ctx)
//
//	http.Handle("/", limiter.Middleware(yourHandler))
//
// # Modes
//
// The limiter runs in one of three modes:
//
//   - disabled: the middleware is a passthrough and no state is kept
//   - simple: clients are identified by the connection peer address
//   - smart: clients are identified through trusted-proxy headers
//     (X-Forwarded-For, X-Real-IP, Forwarded), falling back to the peer
//     address when headers are absent or malformed
//
// # Configuration
//
// The policy can be loaded from a YAML file:
//
//	mode: smart
//	refill_rate: 4
//	burst_size: 2
//	gc_interval: 60s
//	eviction_horizon: 180s
//	trusted_proxies:
//	  - 10.0.0.0/8
//	  - 192.168.1.1
//
//	limiter, err := gatekeep.New(
//	    gatekeep.WithConfigFile("gatekeep.yaml"),
//	)
//
// Construction fails on an invalid policy (non-positive rate or burst,
// unknown mode), so a misconfigured service refuses to start. At request
// time the limiter fails open: if a key cannot be derived or the store
// misbehaves, the request is admitted and a warning is logged.
package gatekeep
