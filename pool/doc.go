// Package pool provides per-device pools and caches of physical GPU objects.
//
// Buffers and textures are recycled by descriptor: a frame acquires them
// while it is recorded and returns them on release, so the next frame with
// the same shapes allocates nothing. Views, bind groups, bind group layouts
// and compute pipelines are cached by their inputs with soft LRU limits.
//
// Caches never evict during a frame. Eviction happens in Forfeit, which the
// owner calls once submitted work has completed:
//
//	pools := pool.New(device, pool.Config{})
//	for frame := range frames {
//	    g := framegraph.New(device, pools)
//	    // declare and execute
//	    g.Release()
//	    waitForFence(frame)
//	    pools.Forfeit()
//	}
//	pools.Invalidate()
//
// Activity can be exported to Prometheus with WithMetrics.
package pool
