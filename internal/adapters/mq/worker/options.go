package worker

import (
	"github.com/okian/danktime/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkerCount sets the number of partitions. Values below one keep the
// default.
func WithWorkerCount(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithPartitionBuffer sets the channel size of each partition.
func WithPartitionBuffer(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.partitionBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
