package service

import (
	"github.com/okian/danktime/internal/adapters/mq/worker"
	"github.com/okian/danktime/internal/adapters/repository"
	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker partitions.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the message queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many transport message ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore sets where chat snapshots are persisted.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSender sets where worker replies go.
func WithSender(sender worker.Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithClock sets the time source handed to every chat.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDefaultTimezone sets the timezone of newly created chats.
func WithDefaultTimezone(tz string) Option {
	return func(s *Service) {
		if tz != "" {
			s.defaultTimezone = tz
		}
	}
}

// WithPlugins registers extra plugins after the built-in ones.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(s *Service) {
		s.extraPlugins = append(s.extraPlugins, plugins...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
