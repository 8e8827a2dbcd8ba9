package world

import (
	"github.com/google/uuid"

	"github.com/annel0/voxel-world/internal/vec"
)

// Константы уровня запроса. Уровень затухает линейно с манхэттенским
// расстоянием до ближайшего прямого запроса: level(d) = RequestLevelHighest - d
// при d <= RequestRange, иначе 0.
const (
	// RequestLevelHighest — максимальный уровень запроса (прямой запрос)
	RequestLevelHighest = 4
	// RequestRange — радиус распространения влияния запроса в чанках
	RequestRange = 2
)

// RequesterID идентифицирует источник запросов (игрока, систему спавна и т.п.).
// Ядру планировщика от запрашивающего нужна только идентичность.
type RequesterID = uuid.UUID

// Request — единица спроса: пара (позиция чанка, запрашивающий).
// Идентичность определяется значением пары, поэтому Request пригоден
// как ключ карты; повторная подача той же пары без промежуточного
// отзыва — ошибка вызывающего и отсекается на границе WorldManager.
type Request struct {
	Position  vec.Vec3    // Координаты запрошенного чанка
	Requester RequesterID // Кто запросил
}

// NewRequest создаёт запрос на чанк от указанного запрашивающего
func NewRequest(pos vec.Vec3, requester RequesterID) Request {
	return Request{Position: pos, Requester: requester}
}
