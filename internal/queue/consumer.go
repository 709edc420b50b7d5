package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LogFileName is the file inside the log directory the consumer appends to.
const LogFileName = "borrowing.log"

const maxBackoff = 30 * time.Second

// Consumer reads borrowing events and appends one line per event to
// <LogDir>/borrowing.log.
type Consumer struct {
	URL    string
	LogDir string
}

func NewConsumer(url, logDir string) *Consumer {
	if logDir == "" {
		logDir = "logs"
	}
	return &Consumer{URL: url, LogDir: logDir}
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are re-dialled with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := dial(c.URL, defaultDialTimeout)
		if err != nil {
			log.Printf("borrowing-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("borrowing-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("borrowing-consumer: set QoS failed: %v", err)
	}
	if err := declare(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BorrowingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				retry := shouldRequeue(err)
				log.Printf("borrowing-consumer: handle message failed (requeue=%t): %v", retry, err)
				_ = d.Nack(false, retry)
				if retry && !sleep(ctx, time.Second) {
					return ctx.Err()
				}
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// errMalformedEvent marks deliveries that can never be handled.
var errMalformedEvent = errors.New("malformed borrowing event")

// shouldRequeue reports whether a failed delivery may succeed later.  Only
// undecodable bodies are dropped; log file errors are retried.
func shouldRequeue(err error) bool {
	return !errors.Is(err, errMalformedEvent)
}

func (c *Consumer) handle(body []byte) error {
	var ev BorrowingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	return appendLine(c.LogDir, formatEventLine(ev))
}

func formatEventLine(ev BorrowingEvent) string {
	switch ev.Type {
	case EventBorrowingReturned:
		return fmt.Sprintf("[%s] Book returned | borrowing_id=%d | user_id=%d | book_id=%d | title=%q | borrowed=%s | expected=%s | returned=%s\n",
			ev.OccurredAt, ev.BorrowingID, ev.UserID, ev.BookID, ev.BookTitle, ev.BorrowDate, ev.ExpectedReturnDate, ev.ActualReturnDate)
	case EventBorrowingCreated:
		return fmt.Sprintf("[%s] Book borrowed | borrowing_id=%d | user_id=%d | book_id=%d | title=%q | borrowed=%s | expected=%s\n",
			ev.OccurredAt, ev.BorrowingID, ev.UserID, ev.BookID, ev.BookTitle, ev.BorrowDate, ev.ExpectedReturnDate)
	}
	return fmt.Sprintf("[%s] %s | borrowing_id=%d | user_id=%d | book_id=%d\n",
		ev.OccurredAt, ev.Type, ev.BorrowingID, ev.UserID, ev.BookID)
}

func appendLine(dir, line string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
