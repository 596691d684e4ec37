package repository

import (
	"context"
	"fmt"
	"sync"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
	"kairos/internal/models/task"
)

// Collection: имя коллекции аккаунта в хранилище документов
type Collection string

const CollectionProfiles Collection = "profiles"
const CollectionRhythms Collection = "rhythms"
const CollectionAssignments Collection = "assignments"

var Collections = []Collection{CollectionProfiles, CollectionRhythms, CollectionAssignments}

func ParseCollection(raw string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", fmt.Errorf("неизвестная коллекция %q", raw)
}

// Snapshot хранит полный текущий набор документов одной коллекции.
// Заполнено только поле, соответствующее Collection.
type Snapshot struct {
	Collection Collection        `json:"collection"`
	Students   []student.Student `json:"students,omitempty"`
	Rhythms    []rhythm.Rhythm   `json:"rhythms,omitempty"`
	Tasks      []task.Task       `json:"tasks,omitempty"`
}

type SnapshotFunc func(Snapshot)

// Subscriber доставляет полный снимок коллекции при подписке и после каждого изменения.
// Возвращённая функция отменяет подписку.
type Subscriber interface {
	Subscribe(ctx context.Context, account string, collection Collection, onSnapshot SnapshotFunc) (func(), error)
}

type hubKey struct {
	account    string
	collection Collection
}

// Hub рассылает снимки подписчикам внутри процесса.
// Чтение снимка и его рассылка по одной коллекции аккаунта идут строго по очереди:
// подписчик не получает снимок старше уже доставленного.
type Hub struct {
	mtx   sync.Mutex
	next  int
	subs  map[hubKey]map[int]SnapshotFunc
	order map[hubKey]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[hubKey]map[int]SnapshotFunc),
		order: make(map[hubKey]*sync.Mutex),
	}
}

// sequence возвращает блокировку, под которой читается и рассылается снимок key
func (h *Hub) sequence(key hubKey) *sync.Mutex {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	m, ok := h.order[key]
	if !ok {
		m = &sync.Mutex{}
		h.order[key] = m
	}
	return m
}

func (h *Hub) Add(account string, collection Collection, fn SnapshotFunc) func() {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	key := hubKey{account: account, collection: collection}
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]SnapshotFunc)
	}
	id := h.next
	h.next++
	h.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mtx.Lock()
			defer h.mtx.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

func (h *Hub) Watched(account string, collection Collection) bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return len(h.subs[hubKey{account: account, collection: collection}]) > 0
}

// Publish вызывает обработчики вне блокировки: они могут обращаться к хранилищу.
func (h *Hub) Publish(account string, snap Snapshot) {
	h.mtx.Lock()
	fns := make([]SnapshotFunc, 0, len(h.subs[hubKey{account: account, collection: snap.Collection}]))
	for _, fn := range h.subs[hubKey{account: account, collection: snap.Collection}] {
		fns = append(fns, fn)
	}
	h.mtx.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Loader читает текущий снимок коллекции
type Loader func(ctx context.Context, account string, collection Collection) (Snapshot, error)

// Notify перечитывает коллекцию и рассылает снимок, если на неё кто-то подписан.
func (h *Hub) Notify(ctx context.Context, account string, collection Collection, load Loader) error {
	if !h.Watched(account, collection) {
		return nil
	}

	seq := h.sequence(hubKey{account: account, collection: collection})
	seq.Lock()
	defer seq.Unlock()

	snap, err := load(ctx, account, collection)
	if err != nil {
		return fmt.Errorf("снимок %s: %w", collection, err)
	}
	h.Publish(account, snap)
	return nil
}

// Subscribe регистрирует fn и сразу доставляет начальный снимок.
// Регистрация идёт до чтения: запись, попавшая между ними, дойдёт через Notify.
// Обработчики вызываются под блокировкой очереди и не должны подписываться сами.
func (h *Hub) Subscribe(ctx context.Context, account string, collection Collection, fn SnapshotFunc, load Loader) (func(), error) {
	if account == "" {
		return nil, ErrEmptyAccount
	}

	seq := h.sequence(hubKey{account: account, collection: collection})
	seq.Lock()
	defer seq.Unlock()

	unsubscribe := h.Add(account, collection, fn)
	snap, err := load(ctx, account, collection)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("начальный снимок %s: %w", collection, err)
	}
	fn(snap)
	return unsubscribe, nil
}
