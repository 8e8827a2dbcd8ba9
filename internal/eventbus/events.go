package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий жизненного цикла чанков
const (
	EventChunkActivated   = "chunk_activated"
	EventChunkDeactivated = "chunk_deactivated"
)

// ChunkEventPayload — полезная нагрузка события жизненного цикла чанка
type ChunkEventPayload struct {
	X      int    `json:"x"`                // Позиция чанка в сетке мира
	Y      int    `json:"y"`                //
	Z      int    `json:"z"`                //
	Level  int    `json:"level"`            // Уровень спроса на момент события
	Strong bool   `json:"strong,omitempty"` // Сильная ли активация
	Reason string `json:"reason,omitempty"` // Причина (например, "demand_lost")
}

// NewChunkEnvelope упаковывает событие жизненного цикла чанка в Envelope
func NewChunkEnvelope(source, eventType string, payload ChunkEventPayload) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация события %s: %w", eventType, err)
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  3, // Lifecycle-события не критичны для backpressure
		Payload:   data,
	}, nil
}
