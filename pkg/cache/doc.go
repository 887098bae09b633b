// Package cache provides Redis-backed caching of Intra API page responses.
//
// The Intra API sends no cache-control headers, so freshness is entirely the
// caller's policy: entries are stored with a client-configured TTL and served
// until it elapses. Caching is optional; a client without a cache manager
// simply fetches every page.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint:    "/v2/campus/69/users",
//		QueryParams: url.Values{"page": []string{"1"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API, then:
//		manager.Set(ctx, key, cache.NewEntry(body, 200, 60*time.Second))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - ft_cache_hits_total{layer="redis"} - Cache hits
//   - ft_cache_misses_total - Cache misses
//   - ft_cache_size_bytes{layer="redis"} - Cache size
//   - ft_cache_errors_total{operation} - Cache operation errors
package cache
