package prediction

import (
	"context"
	"time"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// EventSource is the envelope source of events this service emits.
const EventSource = "dmi-prediction"

// HandleSubmitted predicts the datasets of a submitted publication.
// Malformed messages are logged and acknowledged so they do not cycle through
// retries. Only failures worth retrying are returned.
func (s *serviceImpl) HandleSubmitted(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		s.logger.Warn("dropping undecodable message", logging.String("topic", msg.Topic), logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	if env.EventType != kafka.EventPublicationSubmitted {
		s.logger.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var payload kafka.PublicationSubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		s.logger.Warn("dropping invalid payload", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}
	if payload.PublicationID == "" {
		s.logger.Warn("dropping payload without publication id", logging.String("event_id", env.EventID))
		return nil
	}

	p, err := s.PredictDocument(ctx, payload.PublicationID, payload.Text, 0)
	if err != nil {
		if errors.IsInvalidInput(err) {
			s.logger.Warn("publication has no usable text", logging.String("publication_id", payload.PublicationID))
			return nil
		}
		return err
	}
	s.logger.Info("publication predicted",
		logging.String("publication_id", p.PublicationID),
		logging.Int("snippets", len(p.Snippets)),
		logging.Int("datasets", len(p.Datasets)))
	return nil
}

func (s *serviceImpl) publishPredicted(ctx context.Context, p *Prediction) error {
	preds := make([]kafka.PredictedDataset, len(p.Datasets))
	for i, d := range p.Datasets {
		preds[i] = kafka.PredictedDataset{DatasetID: d.Dataset, Score: d.Score, Rank: i + 1}
	}
	env, err := kafka.NewEventEnvelope(kafka.EventDatasetPredicted, EventSource, kafka.DatasetPredictedPayload{
		PublicationID: p.PublicationID,
		ModelKey:      p.ModelKey,
		Predictions:   preds,
		PredictedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(s.predictedTopic, p.PublicationID)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, msg)
}
