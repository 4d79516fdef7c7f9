// Package queue_publisher publishes provisioning events to RabbitMQ.
// Publishing never fails a request: errors are logged and dropped.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/theater-qr-provisioning/internal/config"
    "github.com/iliyamo/theater-qr-provisioning/internal/model"
    q "github.com/iliyamo/theater-qr-provisioning/internal/queue"
)

// Publisher sends events in the background, one connection per event.
// An empty URL disables publishing.
type Publisher struct {
    URL     string
    Timeout time.Duration
    Log     *logrus.Logger

    // publish is swapped in tests
    publish func(ctx context.Context, url, queue string, body []byte) error
    now     func() time.Time
}

func NewPublisher(url string) *Publisher {
    return &Publisher{URL: url, Timeout: 5 * time.Second, Log: config.GetLogger(), publish: publishAMQP, now: time.Now}
}

// CodeProvisioned publishes a CodeEvent with the provisioned action.
func (p *Publisher) CodeProvisioned(ctx context.Context, code model.ProvisionedCode) {
    if !p.enabled() {
        return
    }
    p.send(ctx, q.CodeQueue, codeEvent(q.ActionProvisioned, code, p.now()))
}

// CodeDeleted publishes a CodeEvent with the deleted action.
func (p *Publisher) CodeDeleted(ctx context.Context, code model.ProvisionedCode) {
    if !p.enabled() {
        return
    }
    p.send(ctx, q.CodeQueue, codeEvent(q.ActionDeleted, code, p.now()))
}

// SeatChanged publishes a SeatChangedEvent.
func (p *Publisher) SeatChanged(ctx context.Context, theaterID, codeID uint64, seat, action string) {
    if !p.enabled() {
        return
    }
    p.send(ctx, q.SeatQueue, q.SeatChangedEvent{
        TheaterID: theaterID,
        CodeID:    codeID,
        Seat:      seat,
        Action:    action,
        At:        p.now().UTC().Format(time.RFC3339),
    })
}

func codeEvent(action string, code model.ProvisionedCode, at time.Time) q.CodeEvent {
    return q.CodeEvent{
        Action:     action,
        TheaterID:  code.TheaterID,
        CodeID:     code.ID,
        QRName:     code.QRName,
        QRType:     string(code.QRType),
        SeatClass:  code.SeatClass,
        Seats:      code.SeatTokens(),
        OperatorID: code.CreatedBy,
        At:         at.UTC().Format(time.RFC3339),
    }
}

func (p *Publisher) enabled() bool { return p != nil && p.URL != "" }

func (p *Publisher) send(ctx context.Context, queue string, event interface{}) {
    body, err := json.Marshal(event)
    if err != nil {
        config.LogError(p.Log, "queue_publisher", "send", "marshal event", queue, err)
        return
    }
    // the request may finish before the broker answers
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
    go func() {
        defer cancel()
        if err := p.publish(ctx, p.URL, queue, body); err != nil {
            config.LogError(p.Log, "queue_publisher", "send", "publish event", queue, err)
        }
    }()
}

func publishAMQP(ctx context.Context, url, queue string, body []byte) error {
    conn, err := amqp.Dial(url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return err
    }
    return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
}
