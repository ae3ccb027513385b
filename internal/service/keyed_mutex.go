package service

import (
	"sync"

	"tutor_chat/internal/domain"
)

// keyedMutex сериализует операции внутри одного диалога,
// разные диалоги не блокируют друг друга. Запись удаляется,
// когда ее больше никто не держит и не ждет.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ConversationKey]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.ConversationKey]*refLock)}
}

// Lock захватывает блокировку диалога и возвращает функцию освобождения
func (k *keyedMutex) Lock(key domain.ConversationKey) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &refLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
