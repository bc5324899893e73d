package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"drive-service/internal/auth"
	"drive-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ActorType represents the type of entity performing an action
type ActorType string

const (
	ActorTypeUser      ActorType = "user"
	ActorTypeAnonymous ActorType = "anonymous"
)

// ResourceType represents the type of resource being acted upon
type ResourceType string

const (
	ResourceTypeFile   ResourceType = "file"
	ResourceTypeFolder ResourceType = "folder"
	ResourceTypeBlock  ResourceType = "block"
	ResourceTypeUser   ResourceType = "user"
)

// Action represents the action being performed
type Action string

const (
	ActionCreate   Action = "create"
	ActionRename   Action = "rename"
	ActionMove     Action = "move"
	ActionFavorite Action = "favorite"
	ActionDelete   Action = "delete"
	ActionRegister Action = "register"
	ActionLogin    Action = "login"
)

// Status represents the outcome of an action
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

const (
	writeTimeout = 2 * time.Second

	insertEventQuery = `
		INSERT INTO audit_events (
			id, event_type, actor_type, actor_id, resource_type, resource_id,
			action, status, ip_address, user_agent, request_id, metadata, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	errMarshalMetadataFmt = "failed to marshal audit metadata: %w"
	errInsertEventFmt     = "failed to insert audit event: %w"
)

// Event represents an audit event
type Event struct {
	ID           uuid.UUID
	EventType    string
	ActorType    ActorType
	ActorID      *uuid.UUID
	ResourceType ResourceType
	ResourceID   *uuid.UUID
	Action       Action
	Status       Status
	IPAddress    string
	UserAgent    string
	RequestID    string
	Metadata     map[string]any
	ErrorMessage string
	CreatedAt    time.Time
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Logger writes audit events to PostgreSQL off the request path. Write
// failures are logged and never reach the caller.
type Logger struct {
	db  execer
	log *zap.Logger
	wg  sync.WaitGroup
	now func() time.Time
}

// NewLogger accepts a *pgxpool.Pool or anything else with the same Exec.
func NewLogger(db execer, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{db: db, log: log.With(zap.String("component", "audit")), now: time.Now}
}

// Log records an audit event synchronously.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.now()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf(errMarshalMetadataFmt, err)
		}
	}

	_, err := l.db.Exec(ctx, insertEventQuery,
		event.ID,
		event.EventType,
		event.ActorType,
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		event.Status,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		metadataJSON,
		event.ErrorMessage,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf(errInsertEventFmt, err)
	}
	return nil
}

// LogFromContext records a successful action taken in an echo request.
func (l *Logger) LogFromContext(c echo.Context, resourceType ResourceType, resourceID *uuid.UUID, action Action, metadata map[string]any) {
	event := newEvent(c, resourceType, resourceID, action, metadata)
	event.Status = StatusSuccess
	l.logAsync(c, event)
}

// LogError records a failed action with its error.
func (l *Logger) LogError(c echo.Context, resourceType ResourceType, resourceID *uuid.UUID, action Action, err error) {
	event := newEvent(c, resourceType, resourceID, action, nil)
	event.Status = StatusFailure
	event.ErrorMessage = logger.SanitizeLogMessage(err.Error())
	l.logAsync(c, event)
}

// Wait blocks until every pending write has finished. Call it during
// shutdown before the pool is closed.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) logAsync(c echo.Context, event *Event) {
	log := logger.FromContext(c.Request().Context(), l.log)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := l.Log(ctx, event); err != nil {
			log.Warn("audit log failed",
				zap.String("event_type", event.EventType),
				logger.Err(err),
			)
		}
	}()
}

func newEvent(c echo.Context, resourceType ResourceType, resourceID *uuid.UUID, action Action, metadata map[string]any) *Event {
	event := &Event{
		EventType:    string(action) + "_" + string(resourceType),
		ActorType:    ActorTypeAnonymous,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
		RequestID:    c.Response().Header().Get(echo.HeaderXRequestID),
	}

	if metadata != nil {
		event.Metadata = logger.SanitizeMap(metadata)
	}

	if uid, ok := c.Get(auth.ContextKeyUserID).(uuid.UUID); ok {
		event.ActorType = ActorTypeUser
		event.ActorID = &uid
	}

	return event
}
