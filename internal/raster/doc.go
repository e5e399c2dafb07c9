// Package raster provides a headless render.Surface backed by the gg 2D
// library. It needs no display, which makes it the surface of choice for
// snapshots, servers and tests that inspect pixels.
package raster
