// Package service publishes movie activity events to RabbitMQ.  Movie
// notifications only enqueue; a background loop publishes, so a slow or
// unreachable broker never delays or fails a user's write.
package service

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    "github.com/op/go-logging"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/movie-tracker/internal/model"
    q "github.com/iliyamo/movie-tracker/internal/queue"
)

var log = logging.MustGetLogger("publisher")

const (
    publishTimeout = 3 * time.Second
    queueSize      = 256
)

// Publisher holds one broker connection, reopened on demand after a
// failure.  It satisfies tracker.Notifier.  Events beyond the buffer are
// dropped with a warning.
type Publisher struct {
    url    string
    events chan q.MovieEvent
    quit   chan struct{}
    done   chan struct{}
    once   sync.Once

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewPublisher starts the publish loop.  Close stops it.
func NewPublisher(url string) *Publisher {
    p := newPublisher(url, queueSize)
    go p.run()
    return p
}

func newPublisher(url string, size int) *Publisher {
    return &Publisher{
        url:    url,
        events: make(chan q.MovieEvent, size),
        quit:   make(chan struct{}),
        done:   make(chan struct{}),
    }
}

func (p *Publisher) run() {
    defer close(p.done)
    for {
        select {
        case <-p.quit:
            return
        case ev := <-p.events:
            ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
            _ = p.Publish(ctx, ev)
            cancel()
        }
    }
}

func (p *Publisher) enqueue(ev q.MovieEvent) {
    select {
    case p.events <- ev:
    default:
        log.Warningf("rabbitmq: queue full, dropped %s for movie %s", ev.Type, ev.MovieID)
    }
}

// channel returns an open channel with the activity queue declared.
// Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
    if p.ch != nil && !p.ch.IsClosed() {
        return p.ch, nil
    }
    if p.conn == nil || p.conn.IsClosed() {
        conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(publishTimeout)})
        if err != nil {
            return nil, err
        }
        p.conn = conn
    }
    ch, err := p.conn.Channel()
    if err != nil {
        return nil, err
    }
    // durable so messages survive broker restarts
    if _, err := ch.QueueDeclare(q.ActivityQueue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        return nil, err
    }
    p.ch = ch
    return ch, nil
}

// Publish sends ev to the activity queue as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev q.MovieEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    p.mu.Lock()
    defer p.mu.Unlock()

    ch, err := p.channel()
    if err != nil {
        log.Warningf("rabbitmq: channel unavailable: %v", err)
        return err
    }
    err = ch.PublishWithContext(ctx, "", q.ActivityQueue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        log.Warningf("rabbitmq: publish %s failed: %v", ev.Type, err)
        _ = ch.Close()
        p.ch = nil
    }
    return err
}

// MovieSaved queues a created or updated event.
func (p *Publisher) MovieSaved(_ context.Context, ownerID uint64, m model.Movie, created bool) {
    p.enqueue(savedEvent(ownerID, m, created, time.Now()))
}

// MovieDeleted queues a deleted event.
func (p *Publisher) MovieDeleted(_ context.Context, ownerID uint64, id string) {
    p.enqueue(deletedEvent(ownerID, id, time.Now()))
}

// Close stops the publish loop, dropping queued events, and closes the
// channel and connection, if open.
func (p *Publisher) Close() error {
    p.once.Do(func() { close(p.quit) })
    select {
    case <-p.done:
    case <-time.After(2 * publishTimeout):
        log.Warning("rabbitmq: publish loop still busy at close")
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        err := p.conn.Close()
        p.conn = nil
        return err
    }
    return nil
}

func savedEvent(ownerID uint64, m model.Movie, created bool, at time.Time) q.MovieEvent {
    typ := q.MovieUpdated
    if created {
        typ = q.MovieCreated
    }
    return q.MovieEvent{
        Type:         typ,
        OwnerID:      ownerID,
        MovieID:      m.ID,
        Title:        m.Title,
        Director:     m.Director,
        Year:         m.Year,
        Rating:       m.Rating,
        Genre:        m.Genre,
        SeenInCinema: m.SeenInCinema,
        OccurredAt:   at.UTC().Format(time.RFC3339),
    }
}

func deletedEvent(ownerID uint64, id string, at time.Time) q.MovieEvent {
    return q.MovieEvent{
        Type:       q.MovieDeleted,
        OwnerID:    ownerID,
        MovieID:    id,
        OccurredAt: at.UTC().Format(time.RFC3339),
    }
}
