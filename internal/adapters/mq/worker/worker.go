// Package worker drains the message queue into the chat registry. Messages
// are partitioned by chat id so one chat is always handled by the same
// goroutine and keeps its order, while different chats run in parallel.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/danktime/internal/adapters/mq/queue"
	"github.com/okian/danktime/pkg/logger"
	"github.com/okian/danktime/pkg/metrics"
)

const (
	defaultPartitionBuffer = 256
	sendTimeout            = 10 * time.Second
)

// Source delivers queued messages.
type Source interface {
	Dequeue() <-chan queue.Message
}

// Processor runs a message through its chat and returns the replies.
type Processor interface {
	ProcessMessage(ctx context.Context, m queue.Message) ([]string, error)
}

// Sender delivers replies to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type partition struct {
	name string
	in   chan queue.Message
}

// Pool fans messages out to per-chat partitions.
type Pool struct {
	source    Source
	processor Processor
	sender    Sender

	workerCount     int
	partitionBuffer int
	partitions      []*partition

	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
	logger logger.Logger
}

// NewPool creates a pool. sender may be nil, in which case replies are
// dropped.
func NewPool(source Source, processor Processor, sender Sender, opts ...Option) *Pool {
	p := &Pool{
		source:          source,
		processor:       processor,
		sender:          sender,
		workerCount:     runtime.NumCPU(),
		partitionBuffer: defaultPartitionBuffer,
		done:            make(chan struct{}),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.partitions = make([]*partition, p.workerCount)
	for i := range p.partitions {
		p.partitions[i] = &partition{
			name: "worker-" + strconv.Itoa(i),
			in:   make(chan queue.Message, p.partitionBuffer),
		}
	}
	return p
}

// Size returns the number of partitions.
func (p *Pool) Size() int { return len(p.partitions) }

// PartitionFor returns the partition index of a chat.
func PartitionFor(chatID int64, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	return int(uint64(chatID) % uint64(partitions))
}

// Start launches the dispatcher and one goroutine per partition. They stop
// when the source is closed and drained, or when ctx is cancelled, which
// drops whatever is still buffered.
func (p *Pool) Start(ctx context.Context) {
	for _, part := range p.partitions {
		p.wg.Add(1)
		go p.run(ctx, part)
	}
	go p.dispatch(ctx)
	go func() {
		p.wg.Wait()
		p.once.Do(func() { close(p.done) })
	}()
}

func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, part := range p.partitions {
			close(part.in)
		}
	}()

	in := p.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			part := p.partitions[PartitionFor(m.ChatID, len(p.partitions))]
			select {
			case part.in <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) run(ctx context.Context, part *partition) {
	defer p.wg.Done()
	log := p.logger.Named(part.name)

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-part.in:
			if !ok {
				return
			}
			p.process(ctx, log, m)
		}
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, m queue.Message) { //nolint:gocritic // Message is passed by value over the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	replies, err := p.processor.ProcessMessage(ctx, m)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_failed")
		log.Error(ctx, "processing message failed",
			logger.String("message_id", m.ID.String()),
			logger.Int64("chat_id", m.ChatID),
			logger.Error(err),
		)
		return
	}
	if p.sender == nil {
		return
	}

	for _, reply := range replies {
		if reply == "" {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := p.sender.SendMessage(sendCtx, m.ChatID, reply)
		cancel()
		if err != nil {
			metrics.RecordErrorByComponent("worker", "send_failed")
			log.Warn(ctx, "sending reply failed", logger.Int64("chat_id", m.ChatID), logger.Error(err))
		}
	}
}

// Shutdown waits for the partitions to finish. The caller closes the
// source first and keeps the Start context alive so buffered messages are
// drained.
func (p *Pool) Shutdown(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
