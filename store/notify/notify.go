package notify

import (
	"context"
	"log/slog"

	"github.com/warp/attendance-engine/attendance"
)

// Store decorates an attendance.Store, publishing every successful Write and
// Delete. A failed publish is logged; the write itself has already happened
// and is still reported as a success.
type Store struct {
	attendance.Store
	pub    Publisher
	logger *slog.Logger
}

// Wrap decorates store so that changes go to pub.
func Wrap(store attendance.Store, pub Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: store, pub: pub, logger: logger}
}

func (s *Store) Write(ctx context.Context, path string, value []byte) error {
	if err := s.Store.Write(ctx, path, value); err != nil {
		return err
	}
	s.publish(ctx, attendance.Change{Path: path, Value: append([]byte(nil), value...)})
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.Store.Delete(ctx, path); err != nil {
		return err
	}
	s.publish(ctx, attendance.Change{Path: path, Deleted: true})
	return nil
}

func (s *Store) publish(ctx context.Context, ch attendance.Change) {
	if err := s.pub.Publish(ctx, ch); err != nil {
		s.logger.WarnContext(ctx, "change publish failed", "path", ch.Path, "error", err)
	}
}
