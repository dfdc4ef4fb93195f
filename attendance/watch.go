/*
watch.go - Real-time scan watcher

PURPOSE:
  Drives the incremental updater from live inbox notifications. Each new
  value under scans/ is decoded and applied on its own; nothing depends on
  the order in which different scans arrive.

OUTCOMES:
  applied           scan archived, record updated
  already applied   ignored (redelivery, or applied by the HTTP handler)
  policy violation  logged, scan left in the inbox for the batch run
  unregistered      (RegisteredOnly) left in the inbox untouched
  malformed         logged and skipped
*/
package attendance

import (
	"context"
	"errors"
	"log/slog"
)

// Watcher feeds inbox changes into an Updater.
type Watcher struct {
	Updater    *Updater
	Subscriber Subscriber
	Logger     *slog.Logger

	// RegisteredOnly leaves scans of subjects without an account in the
	// inbox instead of applying them.
	RegisteredOnly bool
}

func NewWatcher(updater *Updater, sub Subscriber, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{Updater: updater, Subscriber: sub, Logger: logger}
}

// Run drains the current inbox, then applies live changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	changes, err := w.Subscriber.Subscribe(ctx, ScansPrefix)
	if err != nil {
		return err
	}
	w.Logger.InfoContext(ctx, "scan watcher started", "prefix", ScansPrefix)

	if err := w.Drain(ctx); err != nil {
		w.Logger.WarnContext(ctx, "initial inbox drain failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.Logger.InfoContext(ctx, "scan watcher stopped")
			return nil
		case ch, ok := <-changes:
			if !ok {
				w.Logger.InfoContext(ctx, "scan subscription closed")
				return nil
			}
			if ch.Deleted {
				continue
			}
			scan, err := DecodeScan(ch.Path, ch.Value)
			if err != nil {
				w.Logger.WarnContext(ctx, "undecodable scan", "path", ch.Path, "error", err)
				continue
			}
			w.Handle(ctx, scan)
		}
	}
}

// Drain applies every scan currently in the inbox, oldest first.
func (w *Watcher) Drain(ctx context.Context) error {
	inbox, err := w.Updater.Repo.ListInbox(ctx)
	if err != nil {
		return err
	}
	scans := append([]ScanEvent(nil), inbox.Scans...)
	SortScans(scans)
	for _, scan := range scans {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.Handle(ctx, scan)
	}
	return nil
}

// Handle applies one scan and logs the outcome. It reports whether the scan
// was applied.
func (w *Watcher) Handle(ctx context.Context, scan ScanEvent) bool {
	log := w.Logger.With("scan", scan.ID, "subject", scan.SubjectID)

	if w.RegisteredOnly && scan.Validate() == nil {
		_, found, err := w.Updater.Repo.GetAccount(ctx, scan.SubjectID)
		if err != nil {
			log.ErrorContext(ctx, "account lookup failed", "error", err)
			return false
		}
		if !found {
			log.InfoContext(ctx, "scan from unregistered subject left in inbox")
			return false
		}
	}

	rec, err := w.Updater.Apply(ctx, scan)
	var pv *PolicyViolationError
	switch {
	case err == nil:
		log.InfoContext(ctx, "scan applied", "date", rec.Date, "status", rec.Status)
		return true
	case IsAlreadyApplied(err):
		log.DebugContext(ctx, "scan already applied")
	case errors.As(err, &pv):
		log.WarnContext(ctx, "scan refused", "date", pv.Key.Date, "reason", pv.Reason)
	case IsMalformed(err):
		log.WarnContext(ctx, "malformed scan skipped", "error", err)
	default:
		log.ErrorContext(ctx, "scan apply failed", "error", err)
	}
	return false
}
