package world

import (
	"fmt"
	"sync/atomic"
)

// Limit — именованный счётчик бюджета: ограничивает число одновременных
// дорогих переходов (слабых активаций, сбросов на диск и т.п.).
// Аллокация неблокирующая: исчерпанный бюджет означает «повторить
// на следующем тике», а не ожидание.
type Limit struct {
	name      string       // Имя бюджета (для логов и метрик)
	max       int64        // Максимальная ёмкость
	remaining atomic.Int64 // Оставшийся запас
}

// Name возвращает имя бюджета
func (l *Limit) Name() string {
	return l.name
}

// Max возвращает максимальную ёмкость бюджета
func (l *Limit) Max() int {
	return int(l.max)
}

// Remaining возвращает текущий запас бюджета
func (l *Limit) Remaining() int {
	return int(l.remaining.Load())
}

// TryAllocate пытается занять одну единицу бюджета.
// Возвращает Guard и true при успехе; nil и false, если бюджет исчерпан.
// Безопасно при конкурентных вызовах: декремент выполняется через CAS.
func (l *Limit) TryAllocate() (*Guard, bool) {
	for {
		cur := l.remaining.Load()
		if cur <= 0 {
			return nil, false
		}
		if l.remaining.CompareAndSwap(cur, cur-1) {
			return &Guard{limit: l}, true
		}
	}
}

// release возвращает единицу бюджета счётчику
func (l *Limit) release() {
	if n := l.remaining.Add(1); n > l.max {
		// Возврат сверх ёмкости — всегда ошибка программирования
		// (двойной Release или чужой Guard), маскировать её нельзя.
		panic(fmt.Sprintf("бюджет %q: возврат сверх ёмкости (%d > %d)", l.name, n, l.max))
	}
}

// Guard — токен успешной аллокации бюджета. Освобождение возвращает
// единицу бюджета; повторное освобождение того же Guard — фатальная
// ошибка программирования.
type Guard struct {
	limit    *Limit
	released atomic.Bool
}

// Release возвращает занятую единицу бюджета
func (g *Guard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("бюджет %q: повторный Release одного Guard", g.limit.name))
	}
	g.limit.release()
}
