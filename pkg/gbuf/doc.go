// Package gbuf provides the public API for embedding the gbuf viewer.
// A Viewer pulls gbuf graphics command streams from a feed (a dserv
// WebSocket server, a watched JSON file or a Lua drawing script), renders
// them onto a preview window or an offscreen raster and reports what it
// drew through events, metrics and health checks.
//
// # Basic Usage
//
//	v, err := gbuf.New("/path/to/gbuf.lua", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer v.Stop()
//
//	if err := v.Start(); err != nil {
//		log.Fatal(err)
//	}
//
// # Configuration Sources
//
//   - Disk file: use [New] to load from a filesystem path
//   - Embedded FS: use [NewFromFS] to load from an [io/fs.FS]
//   - io.Reader: use [NewFromReader] for generated configurations
//   - No file: use [NewDefault] for the built-in defaults
//
// [Options] override individual settings on top of any of these.
//
// # Feeding Frames
//
// Besides its configured feed, a running Viewer accepts frames directly:
//
//	v.Submit(gbuf.Envelope{Name: "graphics/main", Data: `{"commands":[...]}`})
//
// Frames go through a single-slot mailbox: when frames arrive faster than
// they are drawn, only the newest one is rendered.
//
// # Headless Mode
//
// With Options.Headless the viewer renders onto an offscreen raster.
// [Viewer.Snapshot] writes the current canvas as PNG in either mode, and
// [Viewer.ExportFrame] writes the frame behind it as gbuf JSON.
//
//	v, _ := gbuf.NewDefault(&gbuf.Options{Headless: true, FeedFile: "frame.json"})
//	v.Start()
//	v.Snapshot(out)
//
// # Error Handling
//
// Runtime errors are reported through [ErrorHandler] and recorded in an
// [ErrorTracker] under a category (decode, render, feed, config, lua, io).
// Handlers are called asynchronously; do not block in them.
package gbuf
