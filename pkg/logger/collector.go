package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated logs, e.g. the Kafka producer.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush at least this often
	CountThreshold int           // flush once this many distinct entries are pending
	Topic          string
	Instance       string // stamped on every batch
	Publisher      Publisher
}

// AggregatedLogEntry is one distinct log line and how often it was seen
// since the last flush.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogBatch is the payload published on every flush.
type LogBatch struct {
	Instance string               `json:"instance,omitempty"`
	Entries  []AggregatedLogEntry `json:"entries"`
	SentAt   time.Time            `json:"sent_at"`
}

// LogCollector folds repeated log lines into counted entries and publishes
// them in batches.
type LogCollector struct {
	config  *CollectionConfig
	pending map[uint64]*AggregatedLogEntry
	order   []uint64
	closed  bool
	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	if config.TimeInterval <= 0 {
		config.TimeInterval = 30 * time.Second
	}
	if config.CountThreshold <= 0 {
		config.CountThreshold = 100
	}
	c := &LogCollector{
		config:  config,
		pending: make(map[uint64]*AggregatedLogEntry),
		stop:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if e, ok := c.pending[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.pending[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
		c.order = append(c.order, key)
	}

	if len(c.pending) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// Pending returns the number of distinct entries waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", level, message, caller)
	// map keys are sorted by encoding/json
	if b, err := json.Marshal(fields); err == nil {
		h.Write(b)
	}
	return h.Sum64()
}

func (c *LogCollector) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

// flushLocked hands the pending entries, in first-seen order, to the publisher.
func (c *LogCollector) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	batch := LogBatch{
		Instance: c.config.Instance,
		Entries:  make([]AggregatedLogEntry, 0, len(c.pending)),
		SentAt:   time.Now().UTC(),
	}
	for _, k := range c.order {
		batch.Entries = append(batch.Entries, *c.pending[k])
	}
	c.pending = make(map[uint64]*AggregatedLogEntry)
	c.order = c.order[:0]

	if c.config.Publisher == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "failed to send aggregated logs: %v\n", err)
		}
	}()
}

// Close flushes what is pending and waits for in-flight sends.
// Later AddLog calls are dropped.
func (c *LogCollector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	c.wg.Wait()
}
