package world

import (
	"github.com/annel0/voxel-world/internal/vec"
)

// RequestAlgorithm — инкрементальный движок распространения спроса.
// Обрабатывает пакеты новых и отозванных запросов раз в тик и
// пересчитывает уровни только затронутых чанков, не сканируя весь мир.
//
// Движок рассчитан на однопоточное синхронное выполнение внутри тика;
// ссылки на реестры он получает через функции доступа владельца и не
// удерживает их дольше одного вызова Process.
type RequestAlgorithm struct {
	// getOptional возвращает реестр позиции или nil
	getOptional func(pos vec.Vec3) *Requests
	// getRequired возвращает реестр позиции, создавая его при отсутствии
	getRequired func(pos vec.Vec3) *Requests

	// requested — авторитетное множество позиций с хотя бы одним
	// прямым запросом (без затухания)
	requested map[vec.Vec3]struct{}
}

// NewRequestAlgorithm создаёт движок с функциями доступа к реестрам
func NewRequestAlgorithm(getOptional, getRequired func(pos vec.Vec3) *Requests) *RequestAlgorithm {
	return &RequestAlgorithm{
		getOptional: getOptional,
		getRequired: getRequired,
		requested:   make(map[vec.Vec3]struct{}),
	}
}

// RequestedCount возвращает число прямо запрошенных позиций
func (ra *RequestAlgorithm) RequestedCount() int {
	return len(ra.requested)
}

// IsRequested сообщает, запрошена ли позиция прямо
func (ra *RequestAlgorithm) IsRequested(pos vec.Vec3) bool {
	_, ok := ra.requested[pos]
	return ok
}

// Process применяет пакет добавлений и отзывов, накопленный с прошлого
// тика, и согласует все затронутые реестры. Возвращает реестры, чьё
// согласование отложено из-за исчерпанного бюджета — владелец повторяет
// для них ApplyLevel на следующем тике.
//
// Пакетность существенна: все добавления и отзывы тика видны вместе до
// любого пересчёта уровней, поэтому промежуточных состояний, зависящих
// от порядка подачи, не возникает.
func (ra *RequestAlgorithm) Process(pendingRequests, pendingReleases []Request) []*Requests {
	newlyRequested := make(map[vec.Vec3]struct{})
	noLongerRequested := make(map[vec.Vec3]struct{})
	changed := make(map[*Requests]struct{})

	// 1. Применяем добавления: первый запрос на позицию помечает её
	// как новую (и снимает возможную пометку об уходе в этом же пакете)
	for _, r := range pendingRequests {
		rq := ra.getRequired(r.Position)
		if rq.AddRequest(r) {
			newlyRequested[r.Position] = struct{}{}
			delete(noLongerRequested, r.Position)
		}
	}

	// 2. Применяем отзывы только к существующим реестрам: уход
	// последнего запроса помечает позицию как покинутую
	for _, r := range pendingReleases {
		rq := ra.getOptional(r.Position)
		if rq == nil {
			continue
		}
		if rq.RemoveRequest(r) {
			noLongerRequested[r.Position] = struct{}{}
			delete(newlyRequested, r.Position)
		}
	}

	// 3. Покинутые позиции исключаются из авторитетного множества
	for pos := range noLongerRequested {
		delete(ra.requested, pos)
	}

	// 4. Вокруг каждой покинутой позиции уровни выводятся заново:
	// сброс и подъём от ближайшего оставшегося источника спроса
	for center := range noLongerRequested {
		forEachInManhattanRange(center, RequestRange, func(pos vec.Vec3) {
			rq := ra.getOptional(pos)
			if rq == nil {
				return
			}
			if _, ok := ra.requested[pos]; ok {
				// Прямо запрошенные позиции держат максимум сами
				return
			}

			rq.ResetLevel()
			changed[rq] = struct{}{}

			if dist, ok := ra.nearestRequestedDistance(pos); ok && dist <= 2*RequestRange {
				rq.RaiseLevel(RequestLevelHighest - dist)
			}
		})
	}

	// 5. Вокруг каждой новой позиции уровни поднимаются с затуханием
	// по расстоянию; подъём монотонен, поэтому пересечение зон новых
	// и покинутых центров даёт максимум из двух результатов
	for center := range newlyRequested {
		forEachInManhattanRange(center, RequestRange, func(pos vec.Vec3) {
			rq := ra.getRequired(pos)
			rq.RaiseLevel(RequestLevelHighest - center.ManhattanDistanceTo(pos))
			changed[rq] = struct{}{}
		})
		ra.requested[center] = struct{}{}
	}

	// 6. Каждый изменённый реестр согласуется ровно один раз;
	// порядок обхода несущественен
	var deferred []*Requests
	for rq := range changed {
		if !rq.ApplyLevel() {
			deferred = append(deferred, rq)
		}
	}
	return deferred
}

// nearestRequestedDistance возвращает кратчайшее манхэттенское расстояние
// от позиции до любой прямо запрошенной позиции. Линейный проход по
// requested допустим: множество прямых запросов мало́ относительно мира.
func (ra *RequestAlgorithm) nearestRequestedDistance(pos vec.Vec3) (int, bool) {
	best := 0
	found := false
	for req := range ra.requested {
		d := pos.ManhattanDistanceTo(req)
		if !found || d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// forEachInManhattanRange вызывает fn для каждой позиции ромба
// |dx|+|dy|+|dz| <= r вокруг центра, включая сам центр, ровно один раз
func forEachInManhattanRange(center vec.Vec3, r int, fn func(pos vec.Vec3)) {
	for dx := -r; dx <= r; dx++ {
		ry := r - vec.Abs(dx)
		for dy := -ry; dy <= ry; dy++ {
			rz := ry - vec.Abs(dy)
			for dz := -rz; dz <= rz; dz++ {
				fn(center.Offset(dx, dy, dz))
			}
		}
	}
}
