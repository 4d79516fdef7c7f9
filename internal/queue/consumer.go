package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/theater-qr-provisioning/internal/config"
)

// DefaultLogPath is where the consumer journals events.
var DefaultLogPath = filepath.Join("logs", "provisioning.log")

// StartConsumer consumes both provisioning queues and appends one line per
// event to logPath.  It reconnects with exponential backoff and returns
// only when ctx is done.  Undecodable messages are rejected without
// requeue.
func StartConsumer(ctx context.Context, url, logPath string) error {
    if logPath == "" {
        logPath = DefaultLogPath
    }
    log := config.GetLogger().WithField("module", "queue-consumer")
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.WithError(err).WithField("retry_in", backoff.String()).Warn("dial broker failed")
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, logPath, log)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.WithError(err).Warn("consume loop ended; reconnecting")
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

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

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string, log *logrus.Entry) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.WithError(err).Warn("set QoS failed")
    }

    type delivery struct {
        queue string
        d     amqp.Delivery
    }
    merged := make(chan delivery)
    done := make(chan struct{})
    defer close(done)
    for _, name := range []string{CodeQueue, SeatQueue} {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
        msgs, err := ch.Consume(name, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", name, err)
        }
        go func(name string, msgs <-chan amqp.Delivery) {
            for d := range msgs {
                select {
                case merged <- delivery{queue: name, d: d}:
                case <-done:
                    return
                }
            }
        }(name, msgs)
    }

    closed := conn.NotifyClose(make(chan *amqp.Error, 1))
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case amqpErr := <-closed:
            if amqpErr != nil {
                return amqpErr
            }
            return errors.New("connection closed")
        case m := <-merged:
            if err := appendEvent(logPath, m.queue, m.d.Body); err != nil {
                log.WithError(err).WithField("queue", m.queue).Error("handle message failed")
                _ = m.d.Nack(false, false)
                continue
            }
            _ = m.d.Ack(false)
        }
    }
}

func appendEvent(logPath, queue string, body []byte) error {
    if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    return writeEvent(f, queue, body)
}

// writeEvent decodes a message of queue and writes its journal line.
func writeEvent(w io.Writer, queue string, body []byte) error {
    var line string
    switch queue {
    case CodeQueue:
        var ev CodeEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = ev.LogLine()
    case SeatQueue:
        var ev SeatChangedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = ev.LogLine()
    default:
        return fmt.Errorf("unknown queue %q", queue)
    }
    if _, err := io.WriteString(w, line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
