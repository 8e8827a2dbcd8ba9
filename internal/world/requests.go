package world

import (
	"fmt"

	"github.com/annel0/voxel-world/internal/vec"
)

// Requests — реестр спроса одного чанка. Хранит множество активных
// запросов на позицию, текущий применённый уровень и ссылку на выданный
// чанк. Создаётся владельцем карты реестров лениво; пустой реестр с
// нулевым уровнем инертен и может быть убран проходом компактизации.
//
// Все операции, кроме ApplyLevel, — чистая бухгалтерия без побочных
// эффектов на состояние чанка.
type Requests struct {
	position vec.Vec3             // Позиция чанка
	ctx      *ChunkContext        // Фасад жизненного цикла
	requests map[Request]struct{} // Активные запросы на позицию
	level    int                  // Текущий уровень
	chunk    *Chunk               // Выданный чанк (nil, пока уровень 0)
}

// newRequests создаёт пустой реестр для позиции
func newRequests(ctx *ChunkContext, pos vec.Vec3) *Requests {
	return &Requests{
		position: pos,
		ctx:      ctx,
		requests: make(map[Request]struct{}),
	}
}

// Position возвращает позицию чанка реестра
func (rq *Requests) Position() vec.Vec3 {
	return rq.position
}

// Level возвращает текущий уровень реестра
func (rq *Requests) Level() int {
	return rq.level
}

// IsRequested сообщает, есть ли на позицию хотя бы один прямой запрос.
// После согласования прямой запрос всегда означает уровень RequestLevelHighest.
func (rq *Requests) IsRequested() bool {
	return len(rq.requests) > 0
}

// Chunk возвращает выданный чанк или nil, если чанк не материализован
func (rq *Requests) Chunk() *Chunk {
	return rq.chunk
}

// AddRequest добавляет запрос в реестр.
// Возвращает true, если это первый запрос на позицию.
// Повторное добавление той же пары (позиция, запрашивающий) — ошибка
// вызывающего; дедупликация выполняется на границе WorldManager.
func (rq *Requests) AddRequest(r Request) bool {
	if _, ok := rq.requests[r]; ok {
		panic(fmt.Sprintf("повторный запрос %v от %s", r.Position, r.Requester))
	}
	rq.requests[r] = struct{}{}
	return len(rq.requests) == 1
}

// RemoveRequest удаляет запрос из реестра.
// Возвращает true, если реестр опустел (ушёл последний запрашивающий).
// Удаление отсутствующего запроса — ошибка вызывающего.
func (rq *Requests) RemoveRequest(r Request) bool {
	if _, ok := rq.requests[r]; !ok {
		panic(fmt.Sprintf("отзыв несуществующего запроса %v от %s", r.Position, r.Requester))
	}
	delete(rq.requests, r)
	return len(rq.requests) == 0
}

// RaiseLevel поднимает уровень до максимума из текущего и переданного.
// В пределах одного прохода распространения уровни только растут;
// понизить уровень может лишь ResetLevel.
func (rq *Requests) RaiseLevel(level int) {
	if level > rq.level {
		rq.level = level
	}
}

// ResetLevel сбрасывает уровень в 0 перед повторным выводом уровня
// для позиций, потерявших ближайший источник спроса
func (rq *Requests) ResetLevel() {
	rq.level = 0
}

// ApplyLevel согласует фактическое состояние чанка с текущим уровнем.
// Это единственное место, где реестр вызывает побочные эффекты:
//   - уровень > 0: чанк должен существовать и быть активным; прямой
//     запрос активирует сильно, распространённый спрос — слабо
//     (под бюджет, с возможным отказом);
//   - уровень 0 без запросов: чанк деактивируется и возвращается в пул.
//
// Возвращает false, если согласование отложено (слабая активация не
// получила бюджет) и его нужно повторить на следующем тике.
func (rq *Requests) ApplyLevel() bool {
	if rq.level > 0 {
		if rq.chunk == nil {
			rq.chunk = rq.ctx.GetObject(rq.position)
		}

		if rq.IsRequested() {
			if rq.chunk.State() != ChunkActiveStrong {
				rq.ctx.ActivateStrongly(rq.chunk)
			}
			return true
		}

		// Распространённый спрос: достаточно любой активности
		if rq.chunk.Active() {
			return true
		}
		_, ok := rq.ctx.ActivateWeakly(rq.chunk)
		return ok
	}

	// Уровень 0: прямых запросов нет (прямой запрос всегда держит
	// уровень на максимуме), чанк можно выгружать
	if rq.chunk != nil {
		rq.ctx.Deactivate(rq.chunk)
		rq.ctx.ReturnObject(rq.chunk)
		rq.chunk = nil
	}
	return true
}

// Inert сообщает, что реестр пуст, уровень 0 и чанк не материализован —
// такой реестр можно удалить из карты владельца
func (rq *Requests) Inert() bool {
	return rq.level == 0 && len(rq.requests) == 0 && rq.chunk == nil
}
