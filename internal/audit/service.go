package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/centuary/backend-dealer/internal/common"
	"github.com/centuary/backend-dealer/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindDealer represents an authenticated dealer user.
	ActorKindDealer ActorKind = "dealer"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind     ActorKind
	DealerID string
}

// Entry is one recorded action in the activity trail.
type Entry struct {
	ID           string          `json:"id"`
	ActorKind    string          `json:"actorKind"`
	DealerID     string          `json:"dealerId,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// Store persists and reads back activity entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, dealerID string, limit int) ([]Entry, error)
}

const (
	defaultStream = "dealer:audit"
	defaultMaxLen = 20_000
)

// StreamStore keeps the activity trail on a capped Redis stream.
type StreamStore struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

func (s StreamStore) stream() string {
	if strings.TrimSpace(s.Stream) == "" {
		return defaultStream
	}
	return s.Stream
}

func (s StreamStore) maxLen() int64 {
	if s.MaxLen <= 0 {
		return defaultMaxLen
	}
	return s.MaxLen
}

// Append writes one entry to the stream, trimming the oldest past the cap.
func (s StreamStore) Append(ctx context.Context, e Entry) error {
	if s.R == nil {
		return errors.New("audit: redis client not configured")
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.R.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream(),
		MaxLen: s.maxLen(),
		Approx: true,
		Values: map[string]any{
			"dealer_id": e.DealerID,
			"entry":     string(body),
		},
	}).Err()
}

// Recent returns the newest entries, optionally narrowed to one dealer.
func (s StreamStore) Recent(ctx context.Context, dealerID string, limit int) ([]Entry, error) {
	if s.R == nil {
		return nil, errors.New("audit: redis client not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	// Over-read when filtering so a busy trail still yields a full page.
	fetch := int64(limit)
	if dealerID != "" {
		fetch *= 4
	}
	messages, err := s.R.XRevRangeN(ctx, s.stream(), "+", "-", fetch).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, limit)
	for _, msg := range messages {
		if dealerID != "" {
			owner, _ := msg.Values["dealer_id"].(string)
			if owner != dealerID {
				continue
			}
		}
		raw, _ := msg.Values["entry"].(string)
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// Service records activity entries for critical portal flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record persists an activity entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return nil
		}
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}

	finalStatus := status
	if finalStatus == 0 {
		finalStatus = http.StatusOK
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	var meta json.RawMessage
	if len(metadata) > 0 && json.Valid(metadata) {
		meta = json.RawMessage(metadata)
	}

	return s.Store.Append(ctx, Entry{
		ID:           uuid.NewString(),
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		DealerID:     strings.TrimSpace(actor.DealerID),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Status:       finalStatus,
		IP:           common.ClientIP(req),
		UserAgent:    strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID:    strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:     meta,
		OccurredAt:   now().UTC(),
	})
}

func buildAction(action, method, route string) string {
	trimmed := strings.TrimSpace(action)
	if trimmed != "" {
		return trimmed
	}
	base := strings.ToUpper(strings.TrimSpace(method))
	target := route
	if target == "" {
		target = "/"
	}
	return base + " " + target
}

func buildResource(resourceType, route string) string {
	trimmed := strings.TrimSpace(resourceType)
	if trimmed != "" {
		return trimmed
	}
	route = strings.Trim(route, " ")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindDealer, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}
