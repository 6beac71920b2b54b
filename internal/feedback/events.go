package feedback

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of event
type EventType string

const (
	// Job lifecycle events
	EventJobQueued    EventType = "job.queued"
	EventJobProgress  EventType = "job.progress"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
)

// Event represents a system event
type Event struct {
	Type      EventType
	Timestamp time.Time
	JobID     string
	Data      interface{}
}

// JobQueuedData contains data for job queued events
type JobQueuedData struct {
	Filename string
	Language string
}

// JobProgressData contains data for job progress events
type JobProgressData struct {
	Status   string
	Progress int
}

// JobCompletedData contains data for job completed events
type JobCompletedData struct {
	ResultFilename string
	TextLength     int
	Speakers       int
	ProcessTime    time.Duration
}

// JobFailedData contains data for job failed events
type JobFailedData struct {
	Error       string
	ProcessTime time.Duration
}

// EventHandler is a function that handles events
type EventHandler func(event Event)

type subscription struct {
	id      int
	handler EventHandler
}

// EventBus distributes events to subscribers on a single goroutine,
// so every handler sees events in publish order.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]subscription
	allHandlers []subscription
	nextID      int
	buffer      chan Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	metrics     *eventCounters
}

// EventMetrics is a snapshot of event statistics
type EventMetrics struct {
	EventsPublished map[EventType]int64
	EventsDelivered int64
	EventsDropped   int64
}

type eventCounters struct {
	EventMetrics
	mu sync.Mutex
}

// NewEventBus creates a new event bus
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	eb := &EventBus{
		handlers: make(map[EventType][]subscription),
		buffer:   make(chan Event, bufferSize),
		stopCh:   make(chan struct{}),
		metrics: &eventCounters{
			EventMetrics: EventMetrics{
				EventsPublished: make(map[EventType]int64),
			},
		},
	}

	// Start event processor
	eb.wg.Add(1)
	go eb.processEvents()

	return eb
}

// Subscribe registers a handler for specific event types
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.handlers[eventType] = removeSubscription(eb.handlers[eventType], id)
	}
}

// SubscribeAll registers a handler for all events
func (eb *EventBus) SubscribeAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.allHandlers = append(eb.allHandlers, subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		eb.allHandlers = removeSubscription(eb.allHandlers, id)
	}
}

func removeSubscription(subs []subscription, id int) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Publish sends an event to all subscribers. A nil bus discards events.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.metrics.mu.Lock()
	eb.metrics.EventsPublished[event.Type]++
	eb.metrics.mu.Unlock()

	// Non-blocking send
	select {
	case eb.buffer <- event:
	default:
		eb.metrics.mu.Lock()
		eb.metrics.EventsDropped++
		eb.metrics.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"event_type": event.Type,
			"job_id":     event.JobID,
		}).Warn("Event dropped, buffer full")
	}
}

// processEvents handles event distribution to subscribers
func (eb *EventBus) processEvents() {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.buffer:
			eb.deliverEvent(event)

		case <-eb.stopCh:
			// Process remaining events
			for {
				select {
				case event := <-eb.buffer:
					eb.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent sends an event to all relevant handlers
func (eb *EventBus) deliverEvent(event Event) {
	eb.mu.RLock()
	subs := make([]subscription, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	subs = append(subs, eb.handlers[event.Type]...)
	subs = append(subs, eb.allHandlers...)
	eb.mu.RUnlock()

	for _, s := range subs {
		eb.invoke(s.handler, event)
	}
}

func (eb *EventBus) invoke(h EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"event_type": event.Type,
				"panic":      r,
			}).Error("Event handler panic")
		}
	}()

	h(event)

	eb.metrics.mu.Lock()
	eb.metrics.EventsDelivered++
	eb.metrics.mu.Unlock()
}

// Stop delivers buffered events and shuts the bus down
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.stopCh)
	})
	eb.wg.Wait()
}

// GetMetrics returns event bus metrics
func (eb *EventBus) GetMetrics() EventMetrics {
	eb.metrics.mu.Lock()
	defer eb.metrics.mu.Unlock()

	// Create a copy
	metrics := EventMetrics{
		EventsPublished: make(map[EventType]int64),
		EventsDelivered: eb.metrics.EventsDelivered,
		EventsDropped:   eb.metrics.EventsDropped,
	}

	for k, v := range eb.metrics.EventsPublished {
		metrics.EventsPublished[k] = v
	}

	return metrics
}

// Helper functions for common event publishing

// PublishJobQueued publishes a job queued event
func (eb *EventBus) PublishJobQueued(jobID string, data JobQueuedData) {
	eb.Publish(Event{
		Type:  EventJobQueued,
		JobID: jobID,
		Data:  data,
	})
}

// PublishJobProgress publishes a job progress event
func (eb *EventBus) PublishJobProgress(jobID string, data JobProgressData) {
	eb.Publish(Event{
		Type:  EventJobProgress,
		JobID: jobID,
		Data:  data,
	})
}

// PublishJobCompleted publishes a job completed event
func (eb *EventBus) PublishJobCompleted(jobID string, data JobCompletedData) {
	eb.Publish(Event{
		Type:  EventJobCompleted,
		JobID: jobID,
		Data:  data,
	})
}

// PublishJobFailed publishes a job failed event
func (eb *EventBus) PublishJobFailed(jobID string, data JobFailedData) {
	eb.Publish(Event{
		Type:  EventJobFailed,
		JobID: jobID,
		Data:  data,
	})
}
