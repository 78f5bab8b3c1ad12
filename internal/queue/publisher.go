package queue

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// Publisher sends SecurityEvents to a durable RabbitMQ queue.  Each call
// dials, publishes and closes; events are rare enough that a long-lived
// channel is not worth the reconnect handling.
type Publisher struct {
    URL   string
    Queue string
    Log   zerolog.Logger
}

func NewPublisher(url, queue string, log zerolog.Logger) *Publisher {
    return &Publisher{URL: url, Queue: queue, Log: log}
}

// Publish is best effort: errors are logged and returned so the caller can
// choose to ignore them.  Messages are marked persistent.
func (p *Publisher) Publish(ctx context.Context, ev SecurityEvent) error {
    if ev.OccurredAt == "" {
        ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
    }
    conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        p.Log.Warn().Err(err).Str("event", ev.Type).Msg("rabbitmq: publish failed")
        return err
    }
    return nil
}

// Nop discards events.  It is used when the broker is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, SecurityEvent) error { return nil }

// Sink is anything that accepts security events.
type Sink interface {
    Publish(ctx context.Context, ev SecurityEvent) error
}

// ErrBufferFull is returned by Async.Publish when the buffer is saturated
// and the event was dropped.
var ErrBufferFull = errors.New("queue: event buffer full")

// Async decouples request handling from the broker: Publish enqueues and
// returns immediately, a single worker forwards to the wrapped Sink.
type Async struct {
    sink Sink
    ch   chan SecurityEvent
    log  zerolog.Logger
    done chan struct{}
}

func NewAsync(sink Sink, buffer int, log zerolog.Logger) *Async {
    if buffer < 1 {
        buffer = 1
    }
    return &Async{sink: sink, ch: make(chan SecurityEvent, buffer), log: log, done: make(chan struct{})}
}

// Publish never blocks.
func (a *Async) Publish(_ context.Context, ev SecurityEvent) error {
    if ev.OccurredAt == "" {
        ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
    }
    select {
    case a.ch <- ev:
        return nil
    default:
        a.log.Warn().Str("event", ev.Type).Msg("queue: buffer full, dropping security event")
        return ErrBufferFull
    }
}

// Start runs the forwarding worker until ctx is cancelled, then drains
// what is already buffered with a short deadline.
func (a *Async) Start(ctx context.Context) {
    go func() {
        defer close(a.done)
        for {
            select {
            case ev := <-a.ch:
                a.forward(context.Background(), ev)
            case <-ctx.Done():
                drain, cancel := context.WithTimeout(context.Background(), 5*time.Second)
                defer cancel()
                for {
                    select {
                    case ev := <-a.ch:
                        a.forward(drain, ev)
                    default:
                        return
                    }
                }
            }
        }
    }()
}

// Wait blocks until the worker started by Start has exited.
func (a *Async) Wait() { <-a.done }

func (a *Async) forward(ctx context.Context, ev SecurityEvent) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    if err := a.sink.Publish(ctx, ev); err != nil {
        a.log.Warn().Err(err).Str("event", ev.Type).Msg("queue: forward failed")
    }
}
