package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// Consumer drains the security queue into an append-only log file,
// logs/security.log by default, one line per event.
type Consumer struct {
    URL    string
    Queue  string
    LogDir string
    Log    zerolog.Logger
}

// Run connects, declares the queue and consumes until ctx is cancelled.
// Broker failures trigger a reconnect with exponential backoff capped at
// 30 seconds.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("security-consumer: failed to dial broker")
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.Warn().Err(err).Msg("security-consumer: consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.Warn().Err(err).Msg("security-consumer: set QoS failed")
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
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
            if err := c.HandleMessage(d.Body); err != nil {
                c.Log.Error().Err(err).Msg("security-consumer: handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one event and appends it to the security log.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev SecurityEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    dir := c.LogDir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "security.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly log line.
func FormatLine(ev SecurityEvent) string {
    parts := []string{fmt.Sprintf("[%s] %s", ev.OccurredAt, ev.Type)}
    add := func(k, v string) {
        if v != "" {
            parts = append(parts, fmt.Sprintf("%s=%q", k, v))
        }
    }
    add("user_id", ev.UserID)
    add("session_id", ev.SessionID)
    add("operation", ev.Operation)
    add("client_ip", ev.ClientIP)
    add("request_id", ev.RequestID)
    if ev.WithinGrace {
        parts = append(parts, "within_grace=true")
    }
    add("error", ev.Error)
    return strings.Join(parts, " | ") + "\n"
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
