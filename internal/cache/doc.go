// Package cache provides the generic LRU cache behind the device object
// caches in package pool.
//
// # Cache[K, V]
//
// A thread-safe LRU cache with a soft limit. Insertion never evicts: cached
// GPU objects may be bound by work that has not been submitted yet, so the
// owner decides when eviction is safe and calls Trim.
//
//	views := cache.New[viewKey, rhi.TextureView](256, func(_ viewKey, v rhi.TextureView) {
//		device.DestroyTextureView(v)
//	})
//	v, hit, err := views.GetOrCreate(key, create)
//	...
//	views.Trim() // at a frame boundary
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
// Eviction callbacks run after the internal lock is released, so they may
// call into other caches.
package cache
