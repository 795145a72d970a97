// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"melspec/internal/log"
	"melspec/internal/transport"
)

// DefaultInterval paces packets at roughly 30 per second.
const DefaultInterval = 33 * time.Millisecond

const queueSize = 256

// PacketSender is the link a Publisher writes to.
type PacketSender interface {
	Send(data []byte) error
	Close() error
}

// Publisher packs frame messages into binary packets and sends one per tick
// so receivers are not flooded. Packets still queued when it stops are
// flushed before the sender is closed.
type Publisher struct {
	sender   PacketSender
	interval time.Duration
	queue    chan []byte
	logger   *log.Logger

	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup

	sequenceNum  uint32
	packetBuffer bytes.Buffer
	now          func() time.Time
}

// NewPublisher creates a Publisher writing to sender. A non-positive
// interval selects DefaultInterval.
func NewPublisher(interval time.Duration, sender PacketSender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp publisher: sender cannot be nil")
	}
	logger := log.Named("udp")
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger.Debugf("publisher interval %s", interval)
	return &Publisher{
		sender:   sender,
		interval: interval,
		queue:    make(chan []byte, queueSize),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start launches the pacing goroutine. Calling Start twice is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				select {
				case pkt := <-p.queue:
					p.transmit(pkt)
				default:
				}
			case <-done:
				p.drain()
				return
			}
		}
	}()
}

func (p *Publisher) drain() {
	for {
		select {
		case pkt := <-p.queue:
			p.transmit(pkt)
		default:
			return
		}
	}
}

func (p *Publisher) transmit(pkt []byte) {
	if err := p.sender.Send(pkt); err != nil {
		return
	}
	p.logger.Debugf("sent %d bytes", len(pkt))
}

// Stop flushes the queue and waits for the goroutine to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		p.drain()
		return
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()
	p.wg.Wait()
}

// Send encodes a transport.FrameMessage and queues it.
func (p *Publisher) Send(data any) error {
	var msg transport.FrameMessage
	switch m := data.(type) {
	case transport.FrameMessage:
		msg = m
	case *transport.FrameMessage:
		msg = *m
	default:
		return fmt.Errorf("udp publisher: unsupported message %T", data)
	}

	p.mu.Lock()
	p.sequenceNum++
	p.packetBuffer.Reset()
	err := Encode(&p.packetBuffer, p.sequenceNum, p.now().UnixNano(), msg.Index, msg.DB)
	pkt := bytes.Clone(p.packetBuffer.Bytes())
	p.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case p.queue <- pkt:
	default:
		p.logger.Warnf("queue full, dropping frame %d", msg.Index)
	}
	return nil
}

// Close stops the publisher and closes the sender.
func (p *Publisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

var _ transport.Transport = (*Publisher)(nil)
