package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-world/internal/vec"
)

func TestRequests_AddRemove(t *testing.T) {
	tw := newTestWorld(10)
	pos := vec.Vec3{X: 1}
	rq := newRequests(tw.ctx, pos)
	a := NewRequest(pos, uuid.New())
	b := NewRequest(pos, uuid.New())

	assert.True(t, rq.AddRequest(a), "Первый запрос должен сообщать о переходе 0→1")
	assert.False(t, rq.AddRequest(b), "Второй запрос не меняет статус позиции")
	assert.True(t, rq.IsRequested())

	assert.False(t, rq.RemoveRequest(a), "Уход не последнего запроса не опустошает реестр")
	assert.True(t, rq.RemoveRequest(b), "Уход последнего запроса опустошает реестр")
	assert.False(t, rq.IsRequested())
}

func TestRequests_DuplicateAdd_Panics(t *testing.T) {
	tw := newTestWorld(10)
	pos := vec.Vec3{}
	rq := newRequests(tw.ctx, pos)
	r := NewRequest(pos, uuid.New())
	rq.AddRequest(r)

	// Дедупликация — ответственность границы; здесь дубликат фатален
	assert.Panics(t, func() { rq.AddRequest(r) }, "Повторное добавление должно паниковать")
}

func TestRequests_RemoveMissing_Panics(t *testing.T) {
	tw := newTestWorld(10)
	pos := vec.Vec3{}
	rq := newRequests(tw.ctx, pos)

	assert.Panics(t, func() { rq.RemoveRequest(NewRequest(pos, uuid.New())) },
		"Отзыв несуществующего запроса должен паниковать")
}

func TestRequests_RaiseLevel_Monotone(t *testing.T) {
	tw := newTestWorld(10)
	rq := newRequests(tw.ctx, vec.Vec3{})

	rq.RaiseLevel(2)
	assert.Equal(t, 2, rq.Level())

	rq.RaiseLevel(1)
	assert.Equal(t, 2, rq.Level(), "Подъём до меньшего уровня — no-op")

	rq.RaiseLevel(RequestLevelHighest)
	assert.Equal(t, RequestLevelHighest, rq.Level())

	rq.ResetLevel()
	assert.Equal(t, 0, rq.Level(), "ResetLevel — единственный способ понизить уровень")
}

func TestRequests_ApplyLevel_StrongForRequested(t *testing.T) {
	tw := newTestWorld(10)
	pos := vec.Vec3{X: 2}
	rq := newRequests(tw.ctx, pos)
	rq.AddRequest(NewRequest(pos, uuid.New()))
	rq.RaiseLevel(RequestLevelHighest)

	require.True(t, rq.ApplyLevel())

	require.NotNil(t, rq.Chunk(), "Ненулевой уровень материализует чанк")
	assert.Equal(t, ChunkActiveStrong, rq.Chunk().State())
	assert.Equal(t, pos, rq.Chunk().Position())
	assert.Equal(t, 1, tw.gen.calls, "Чанк наполняется генератором один раз")

	// Повторное согласование без изменений — no-op
	require.True(t, rq.ApplyLevel())
	assert.Equal(t, 1, tw.act.strong, "Уже сильный чанк не активируется заново")
}

func TestRequests_ApplyLevel_WeakForPropagated(t *testing.T) {
	tw := newTestWorld(10)
	rq := newRequests(tw.ctx, vec.Vec3{X: 1})
	rq.RaiseLevel(2)

	require.True(t, rq.ApplyLevel())

	assert.Equal(t, ChunkActiveWeak, rq.Chunk().State())
	assert.Equal(t, 1, tw.act.weak)
	assert.Equal(t, 0, tw.act.strong)
}

func TestRequests_ApplyLevel_ZeroReturnsChunk(t *testing.T) {
	tw := newTestWorld(10)
	rq := newRequests(tw.ctx, vec.Vec3{})
	rq.RaiseLevel(1)
	require.True(t, rq.ApplyLevel())
	require.NotNil(t, rq.Chunk())

	rq.ResetLevel()
	require.True(t, rq.ApplyLevel())

	assert.Nil(t, rq.Chunk(), "Нулевой уровень освобождает чанк")
	assert.Equal(t, 1, tw.act.deactivated)
	assert.Equal(t, 1, tw.ctx.Pool().FreeCount(), "Чанк возвращается в пул")
	assert.True(t, rq.Inert())
}

func TestRequests_ApplyLevel_DeclinedKeepsChunkInactive(t *testing.T) {
	tw := newTestWorld(0) // Бюджет слабых активаций исчерпан заранее
	rq := newRequests(tw.ctx, vec.Vec3{})
	rq.RaiseLevel(3)

	assert.False(t, rq.ApplyLevel(), "Без бюджета согласование откладывается")
	require.NotNil(t, rq.Chunk(), "Чанк уже материализован и ждёт активации")
	assert.Equal(t, ChunkReady, rq.Chunk().State())
	assert.False(t, rq.Inert(), "Реестр с чанком не инертен")
}
