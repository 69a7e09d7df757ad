package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/helpers"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const FailureTopic = "relay.failures"

type FailureNotice struct {
	ID            string `json:"id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	dispatch.Notice
}

func (n FailureNotice) String() string {
	return fmt.Sprintf("%s failed after %d attempts on %d endpoints: %s",
		n.Label, n.Attempts, n.Endpoints, n.LastError)
}

// Notifier publishes one FailureNotice per exhausted dispatch.
type Notifier struct {
	publisher message.Publisher
	topic     string
}

var _ dispatch.Notifier = (*Notifier)(nil)

func NewNotifier(publisher message.Publisher) *Notifier {
	return &Notifier{publisher: publisher, topic: FailureTopic}
}

func (n *Notifier) NotifyExhausted(ctx context.Context, notice dispatch.Notice) {
	fn := FailureNotice{
		ID:            uuid.NewString(),
		CorrelationID: helpers.CorrelationIDFromContext(ctx),
		Notice:        notice,
	}
	b, err := json.Marshal(fn)
	if err != nil {
		log.Warn().Err(err).Msg("could not encode failure notice")
		return
	}

	msg := message.NewMessage(fn.ID, b)
	msg.SetContext(ctx)
	msg.Metadata.Set(helpers.CorrelationIDMetadataKey, fn.CorrelationID)
	if err := n.publisher.Publish(n.topic, msg); err != nil {
		log.Warn().Err(err).Str("label", notice.Label).Msg("failed to publish failure notice")
	}
}

func DecodeNotice(msg *message.Message) (FailureNotice, error) {
	var ret FailureNotice
	if err := json.Unmarshal(msg.Payload, &ret); err != nil {
		return ret, errors.Wrap(err, "could not decode failure notice")
	}
	return ret, nil
}

// NoticePrinter returns a handler writing one line per notice to w.
func NoticePrinter(w io.Writer) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		n, err := DecodeNotice(msg)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed notice")
			return nil
		}
		if _, err := fmt.Fprintf(w, "relay: %s\n", n); err != nil {
			// nacked notices are redelivered
			log.Warn().Err(err).Str("notice_id", n.ID).Msg("could not print failure notice")
		}
		return nil
	}
}
