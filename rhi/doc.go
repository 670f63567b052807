// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rhi defines the render hardware interface consumed by the frame
// graph: a narrow device, queue and command recorder contract that concrete
// backends implement.
//
// # Architecture
//
// The frame graph never talks to a graphics API directly. Everything it needs
// from the device goes through the interfaces in this package, so the same
// scheduling code drives every backend:
//
//	               +-----------------+
//	               |   framegraph    |
//	               | (compile, exec) |
//	               +--------+--------+
//	                        |  rhi.Device
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  backend/hal    |          |    recording    |
//	|  (hal.Device)   |          | (command trace) |
//	+-----------------+          +-----------------+
//
// Descriptor enumerations (formats, usages, load and store operations) are the
// shared types from github.com/gogpu/gputypes.
//
// # Object Identity
//
// Physical objects are opaque interface values. Implementations must return
// pointer types so the values are comparable; pools and caches use them as
// map keys.
//
// # Resource States
//
// [ResourceState] is the access state a resource must be in for a given use.
// The frame graph tracks the last known state of every resource and asks the
// recorder for a [BufferBarrier] or [TextureBarrier] only when the state
// changes. Backends map states onto their own layouts or usages.
package rhi
