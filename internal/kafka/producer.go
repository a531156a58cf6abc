package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/clicker-admin/internal/domain"
)

// NewSaveMessage encodes a save keyed by player so one player's saves stay
// on one partition and are applied in order.
func NewSaveMessage(topic string, save domain.GameSave) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(save)
	if err != nil {
		return nil, fmt.Errorf("encoding save: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(save.UserID),
		Value: sarama.ByteEncoder(data),
	}, nil
}
