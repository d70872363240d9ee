package executor

import (
	"errors"
	"sync"

	"syncworker/internal/models"
)

// ErrPublisherClosed is returned when publishing after the terminal report.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher carries reports from an attempt back to whoever submitted it.
type Publisher interface {
	Publish(r models.Report) error
}

// ChannelPublisher delivers reports on a Go channel and closes it after the
// report carrying the JobResult.
type ChannelPublisher struct {
	mu     sync.Mutex
	ch     chan models.Report
	closed bool
}

// NewChannelPublisher returns a publisher whose channel holds up to buffer
// pending reports. Publish blocks when the buffer is full.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan models.Report, buffer)}
}

func (p *ChannelPublisher) Publish(r models.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.ch <- r
	if r.Done() {
		p.closed = true
		close(p.ch)
	}
	return nil
}

// Reports is the receive side of the progress channel.
func (p *ChannelPublisher) Reports() <-chan models.Report { return p.ch }
