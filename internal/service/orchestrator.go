package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chatguard/internal/database"
	"chatguard/internal/metrics"
	"chatguard/internal/models"
	"chatguard/pkg/classifier"

	"github.com/sirupsen/logrus"
)

// Classifier screens message text; it always resolves to a definite result.
type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

// MessageStore is the durable record the pipeline writes through.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	ListMessages(ctx context.Context) ([]models.ChatMessage, error)
	ClearMessages(ctx context.Context) (int64, error)
}

// Broadcaster fans a canonical record out to every connected participant.
// Delivery is best-effort per connection.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *models.ChatMessage)
}

// Orchestrator runs the per-message pipeline: classify, persist, broadcast.
// Each inbound message is handled at most once; a message that cannot be
// durably recorded is never broadcast, so everything participants see is
// findable later via history.
type Orchestrator struct {
	classifier  Classifier
	store       MessageStore
	broadcaster Broadcaster
	logger      *logrus.Logger
}

func NewOrchestrator(cls Classifier, store MessageStore, broadcaster Broadcaster, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		classifier:  cls,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// HandleIncoming processes one raw sendMessage payload through the pipeline.
// Failures are logged and absorbed here; the caller's connection loop must
// not be torn down by a bad message.
func (o *Orchestrator) HandleIncoming(ctx context.Context, raw json.RawMessage) {
	metrics.IncrementCounter("messages_received", nil, "Inbound sendMessage events")

	msg, text := parseInbound(raw)

	start := time.Now()
	result := o.classifier.Classify(ctx, text)
	metrics.RecordTimer("classify_duration", time.Since(start), nil, "Classifier call latency")

	if result.IsPhishing || result.IsSpam {
		o.logger.WithFields(logrus.Fields{
			LogFieldUser:  msg.User,
			"is_phishing": result.IsPhishing,
			"is_spam":     result.IsSpam,
		}).Info("Message flagged by classifier")
	}

	msg.IsPhishing = result.IsPhishing
	msg.IsSpam = result.IsSpam

	start = time.Now()
	canonical, err := o.store.InsertMessage(ctx, &msg)
	metrics.RecordTimer("insert_duration", time.Since(start), nil, "Store insert latency")
	if err != nil {
		if errors.Is(err, database.ErrStoreUnavailable) {
			metrics.IncrementCounter("store_unavailable", nil, "Operations rejected while the store was down")
		}
		metrics.IncrementCounter("messages_dropped", nil, "Messages not broadcast because persistence failed")
		o.logger.WithError(err).WithField(LogFieldUser, msg.User).
			Error("Failed to persist message, dropping broadcast")
		return
	}

	metrics.IncrementCounter("messages_persisted", nil, "Messages durably recorded")

	o.broadcaster.Broadcast(ctx, canonical)
	metrics.IncrementCounter("messages_broadcast", nil, "Canonical records handed to the broadcaster")
}

// parseInbound builds a ChatMessage from a raw payload and picks the text to
// classify: the message field, then the text field, then the serialized
// payload when neither holds a usable string.
func parseInbound(raw json.RawMessage) (models.ChatMessage, string) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.ChatMessage{Message: string(raw)}, string(raw)
	}

	var msg models.ChatMessage
	if user, ok := payload["user"].(string); ok {
		msg.User = user
	}

	text := string(raw)
	if s, ok := payload["message"].(string); ok && s != "" {
		text = s
	} else if s, ok := payload["text"].(string); ok && s != "" {
		text = s
	}

	msg.Message = text
	return msg, text
}
