package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of save that produced a notification.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// Topics published after an entity is saved.
const (
	TopicEntityInsert = "entity:insert"
	TopicEntityUpdate = "entity:update"
)

// TopicFor maps an operation to its topic.
func TopicFor(op Operation) string {
	if op == OperationInsert {
		return TopicEntityInsert
	}
	return TopicEntityUpdate
}

// ParseOperation accepts "insert" and "update" (plus the presave aliases
// "create" and "save").
func ParseOperation(s string) (Operation, bool) {
	switch s {
	case "insert", "create":
		return OperationInsert, true
	case "update", "save":
		return OperationUpdate, true
	}
	return "", false
}

// Notification is what subscribers receive. Subject is the saved entity.
// Fail records a subscriber error the synchronous publisher returns.
type Notification interface {
	ID() string
	Context() context.Context
	Operation() Operation
	Subject() any
	OccurredAt() time.Time
	Fail(err error)
	Err() error
}

type notification struct {
	id         string
	ctx        context.Context
	op         Operation
	occurredAt time.Time

	mu  sync.Mutex
	err error
}

func (n *notification) init(ctx context.Context, op Operation) {
	if ctx == nil {
		ctx = context.Background()
	}
	n.id = uuid.NewString()
	n.ctx = ctx
	n.op = op
	n.occurredAt = time.Now().UTC()
}

func (n *notification) ID() string { return n.id }
func (n *notification) Context() context.Context { return n.ctx }
func (n *notification) Operation() Operation { return n.op }
func (n *notification) OccurredAt() time.Time { return n.occurredAt }

// Fail keeps the first error.
func (n *notification) Fail(err error) {
	if err == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err == nil {
		n.err = err
	}
}

func (n *notification) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// detach drops the caller's cancellation once the event leaves the request.
func (n *notification) detach() {
	n.ctx = context.WithoutCancel(n.ctx)
}

// EntityEvent is dispatched by the media service after a save.
type EntityEvent struct {
	notification
	entity any
}

func NewEntityEvent(ctx context.Context, op Operation, entity any) *EntityEvent {
	e := &EntityEvent{entity: entity}
	e.init(ctx, op)
	return e
}

func (e *EntityEvent) Subject() any { return e.entity }

// GenericEvent carries a subject plus free-form arguments, as sent by
// external hook callers.
type GenericEvent struct {
	notification
	subject   any
	Arguments map[string]any
}

func NewGenericEvent(ctx context.Context, op Operation, subject any, args map[string]any) *GenericEvent {
	if args == nil {
		args = map[string]any{}
	}
	e := &GenericEvent{subject: subject, Arguments: args}
	e.init(ctx, op)
	return e
}

func (e *GenericEvent) Subject() any { return e.subject }

// Argument returns one argument, nil when absent.
func (e *GenericEvent) Argument(key string) any {
	return e.Arguments[key]
}
