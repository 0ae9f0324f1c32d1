package crdt

import (
	"sync"

	"github.com/google/uuid"
)

// LamportClock представляет логические часы Лампорта для упорядочивания
// правок в распределенной системе без синхронизации физического времени.
type LamportClock struct {
	counter int64      // монотонно возрастающий счетчик
	actorID string     // уникальный идентификатор участника
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает новый экземпляр логических часов Лампорта
// с уникальным идентификатором участника (UUID).
func NewLamportClock() *LamportClock {
	return &LamportClock{
		counter: 0,
		actorID: uuid.New().String(),
	}
}

// NewLamportClockWithActorID создает часы с заданным идентификатором участника.
// Используется для тестирования или восстановления состояния.
func NewLamportClockWithActorID(actorID string) *LamportClock {
	return &LamportClock{
		counter: 0,
		actorID: actorID,
	}
}

// Tick увеличивает счетчик и возвращает новое значение timestamp.
// Используется при создании нового локального события.
func (lc *LamportClock) Tick() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return lc.counter
}

// Update обновляет счетчик на основе полученного удаленного timestamp.
// Согласно алгоритму Лампорта: counter = max(local_counter, remote_timestamp) + 1
func (lc *LamportClock) Update(remoteTimestamp int64) int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remoteTimestamp > lc.counter {
		lc.counter = remoteTimestamp
	}
	lc.counter++

	return lc.counter
}

// GetTimestamp возвращает текущее значение счетчика без его изменения.
func (lc *LamportClock) GetTimestamp() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// GetActorID возвращает уникальный идентификатор участника.
func (lc *LamportClock) GetActorID() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.actorID
}

// SetTimestamp устанавливает счетчик в заданное значение.
// Используется для восстановления состояния часов после перезапуска.
func (lc *LamportClock) SetTimestamp(timestamp int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter = timestamp
}
