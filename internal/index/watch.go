package index

import (
	"context"
	"log/slog"
	"os"

	"github.com/dotmd/dotmd/internal/reader"
	"github.com/dotmd/dotmd/internal/watcher"
)

// Watch consumes w's event stream and incrementally applies it to the
// index: created/modified files are re-read and re-indexed, deleted files
// are removed. It blocks until ctx is canceled or w's channels close.
//
// Directory events and the watcher's own config-change signal are ignored
// here; only individual Markdown files reach IndexFile/RemoveFile.
func (ix *Indexer) Watch(ctx context.Context, w watcher.Watcher, root string) error {
	if err := w.Start(ctx, root); err != nil {
		return err
	}

	events := w.Events()
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			ix.handleEvent(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("err", err.Error()))
		}
	}
}

func (ix *Indexer) handleEvent(ctx context.Context, ev watcher.FileEvent) {
	if ev.IsDir || !reader.IsMarkdown(ev.Path) {
		return
	}

	switch ev.Operation {
	case watcher.OpDelete:
		if err := ix.RemoveFile(ctx, ev.Path); err != nil {
			slog.Error("remove file from index", slog.String("path", ev.Path), slog.String("err", err.Error()))
		}
	case watcher.OpCreate, watcher.OpModify, watcher.OpRename:
		content, err := os.ReadFile(ev.Path)
		if err != nil {
			slog.Warn("read changed file", slog.String("path", ev.Path), slog.String("err", err.Error()))
			return
		}
		file, err := reader.BuildFile(ev.Path, content)
		if err != nil {
			slog.Warn("build file record", slog.String("path", ev.Path), slog.String("err", err.Error()))
			return
		}
		res := ix.IndexFile(ctx, file, content)
		if res.Err != nil {
			slog.Error("index changed file", slog.String("path", ev.Path), slog.String("err", res.Err.Error()))
		}
	}
}
