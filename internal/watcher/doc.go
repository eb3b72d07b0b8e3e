// Package watcher provides real-time file system watching for vault
// directories, with debouncing so editors that write a file multiple times
// in quick succession only trigger one re-index.
//
// Events are detected via fsnotify and coalesced within a debounce window
// before being delivered.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewFsnotifyWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, "/path/to/project"); err != nil {
//	    return err
//	}
//
//	for event := range w.Events() {
//	    switch event.Operation {
//	    case watcher.OpCreate:
//	        // Handle file creation
//	    case watcher.OpModify:
//	        // Handle file modification
//	    case watcher.OpDelete:
//	        // Handle file deletion
//	    }
//	}
package watcher
