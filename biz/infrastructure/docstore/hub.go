package docstore

import (
	"context"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/util/log"
	"sync"

	"github.com/spf13/cast"
)

type EventKind string

const (
	EventSnapshot EventKind = "snapshot"
	EventCreate   EventKind = "create"
	EventUpdate   EventKind = "update"
	EventDelete   EventKind = "delete"
)

// Event 一条文档变更通知
type Event struct {
	Kind       EventKind `json:"kind"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Doc        Doc       `json:"doc"`
}

type subscriber struct {
	ch         chan Event
	caller     Identity
	collection string
	filter     Doc
}

// hub 进程内变更分发。订阅先收存量快照，再收增量
type hub struct {
	mu   sync.Mutex
	next int64
	subs map[int64]*subscriber
}

func newHub() *hub {
	return &hub{subs: make(map[int64]*subscriber)}
}

func (h *hub) add(sub *subscriber) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs[h.next] = sub
	return h.next
}

func (h *hub) remove(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.collection != ev.Collection {
			continue
		}
		if !matchFilter(ev.Doc, sub.filter) {
			continue
		}
		if !sub.caller.System && !readableBy(sub.caller, ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Error("docstore subscriber channel full, dropping %s %s/%s", ev.Kind, ev.Collection, ev.ID)
		}
	}
}

func matchFilter(doc Doc, filter Doc) bool {
	for k, v := range filter {
		if cast.ToString(doc[k]) != cast.ToString(v) {
			return false
		}
	}
	return true
}

// readableBy 增量事件按读规则过滤。变更瞬间已拿到文档本身，
// 归属链上的关联文档由规则的 Resolve 缺失时保守拒绝，因此这里
// 只对含冗余 teacher_id 的会话事件放行给该教师
func readableBy(caller Identity, ev Event) bool {
	if ev.Collection == consts.AssignmentCollection {
		return true
	}
	return caller.UID != "" && cast.ToString(ev.Doc[consts.FieldTeacherId]) == caller.UID
}

// Subscribe 订阅集合变更：先回放当前可读文档的快照，再持续推送增量，
// 直到 cancel 或 ctx 结束
func (s *Store) Subscribe(ctx context.Context, caller Identity, collection string, filter Doc) (<-chan Event, func(), error) {
	snapshot, err := s.List(ctx, caller, collection, filter)
	if err != nil {
		return nil, nil, err
	}

	buf := 64
	if len(snapshot)+16 > buf {
		buf = len(snapshot) + 16
	}
	sub := &subscriber{
		ch:         make(chan Event, buf),
		caller:     caller,
		collection: collection,
		filter:     filter,
	}
	for _, doc := range snapshot {
		sub.ch <- Event{
			Kind:       EventSnapshot,
			Collection: collection,
			ID:         cast.ToString(doc[consts.ID]),
			Doc:        doc,
		}
	}

	id := s.hub.add(sub)
	var once sync.Once
	cancel := func() {
		once.Do(func() { s.hub.remove(id) })
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.ch, cancel, nil
}
