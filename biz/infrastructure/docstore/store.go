package docstore

import (
	"context"
	"errors"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/repository/assignment"
	"focus-write/biz/infrastructure/repository/session"
	"focus-write/biz/infrastructure/rules"
	"focus-write/biz/infrastructure/util/log"
	"time"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
)

// 文档库：mongo 之前唯一的后端。没有任何应用服务器居中校验写入，
// 所以这里把每次 create/read/update 都交给规则层裁决，并把
// "仍处于 active"一类的先决条件压进 mongo 的条件更新里原子执行。

type Doc = rules.Doc

// Identity 调用者身份。零值为未认证；System 仅限进程内组件（归档、监控快照）
type Identity struct {
	UID    string
	System bool
}

func User(uid string) Identity {
	return Identity{UID: uid}
}

var Anonymous = Identity{}
var System = Identity{System: true}

// Backend 单个集合的原始文档操作
type Backend interface {
	FindOneDoc(ctx context.Context, id string) (map[string]any, error)
	InsertDoc(ctx context.Context, doc map[string]any) error
	ApplyDoc(ctx context.Context, id string, set map[string]any, guard map[string]any) (bool, error)
	DeleteDoc(ctx context.Context, id string) (bool, error)
	FindDocs(ctx context.Context, filter map[string]any) ([]map[string]any, error)
}

type Store struct {
	backends map[string]Backend
	hub      *hub
	now      func() time.Time
}

// NewStore mongo 后端的文档库
func NewStore(assignmentMapper *assignment.MongoMapper, sessionMapper *session.MongoMapper) *Store {
	return NewStoreWithBackends(map[string]Backend{
		consts.AssignmentCollection: assignmentMapper,
		consts.SessionCollection:    sessionMapper,
	})
}

// NewStoreWithBackends 供测试注入内存后端
func NewStoreWithBackends(backends map[string]Backend) *Store {
	return &Store{
		backends: backends,
		hub:      newHub(),
		now:      time.Now,
	}
}

// SetClock 测试用，替换服务端时间源
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) backend(collection string) (Backend, error) {
	b, ok := s.backends[collection]
	if !ok {
		return nil, consts.ErrNotFound
	}
	return b, nil
}

// resolve 规则内部的关联文档查询，不再走读规则（对应规则语言里的 get()）
func (s *Store) resolve(ctx context.Context) func(collection, id string) Doc {
	return func(collection, id string) Doc {
		b, err := s.backend(collection)
		if err != nil {
			return nil
		}
		doc, err := b.FindOneDoc(ctx, id)
		if err != nil {
			return nil
		}
		return doc
	}
}

// Create 建档。服务端补打 created_at/updated_at
func (s *Store) Create(ctx context.Context, caller Identity, collection, id string, fields Doc) error {
	b, err := s.backend(collection)
	if err != nil {
		return err
	}

	doc := cloneDoc(fields)
	stripServerFields(doc)
	now := s.now()
	doc[consts.FieldCreatedAt] = now
	doc[consts.FieldUpdatedAt] = now

	if !caller.System {
		if err := rules.Allow(rules.Op{
			Kind:       rules.KindCreate,
			Collection: collection,
			ID:         id,
			Caller:     caller.UID,
			Next:       doc,
			Resolve:    s.resolve(ctx),
		}); err != nil {
			return err
		}
	}

	doc[consts.ID] = id
	if err := b.InsertDoc(ctx, doc); err != nil {
		var en *consts.Errno
		if errors.As(err, &en) {
			return err
		}
		log.CtxError(ctx, "docstore create %s/%s failed: %v", collection, id, err)
		return consts.ErrTransient
	}
	s.hub.publish(Event{Kind: EventCreate, Collection: collection, ID: id, Doc: doc})
	return nil
}

// Update 部分更新。规则层拿全量的先前文档和合并后的下一文档裁决；
// 通过后用条件更新落盘，落败即说明文档在裁决后被并发改掉（典型是已锁定）
func (s *Store) Update(ctx context.Context, caller Identity, collection, id string, fields Doc) (Doc, error) {
	b, err := s.backend(collection)
	if err != nil {
		return nil, err
	}

	prior, err := b.FindOneDoc(ctx, id)
	if err != nil {
		return nil, err
	}

	set := cloneDoc(fields)
	stripServerFields(set)
	set[consts.FieldUpdatedAt] = s.now()

	next := cloneDoc(prior)
	for k, v := range set {
		next[k] = v
	}
	// submitted_at 只在 active→locked 的那一次由服务端写入
	if collection == consts.SessionCollection &&
		cast.ToString(next[consts.FieldStatus]) == consts.StatusLocked &&
		cast.ToString(prior[consts.FieldStatus]) == consts.StatusActive {
		set[consts.FieldSubmittedAt] = s.now()
		next[consts.FieldSubmittedAt] = set[consts.FieldSubmittedAt]
	}

	if !caller.System {
		if err := rules.Allow(rules.Op{
			Kind:       rules.KindUpdate,
			Collection: collection,
			ID:         id,
			Caller:     caller.UID,
			Prior:      prior,
			Next:       next,
			Resolve:    s.resolve(ctx),
		}); err != nil {
			return nil, err
		}
	}

	ok, err := b.ApplyDoc(ctx, id, set, s.updateGuard(collection, prior, next))
	if err != nil {
		log.CtxError(ctx, "docstore update %s/%s failed: %v", collection, id, err)
		return nil, consts.ErrTransient
	}
	if !ok {
		// 裁决与落盘之间文档已变，重读区分 NotFound 与并发锁定
		if _, rerr := b.FindOneDoc(ctx, id); rerr != nil {
			return nil, consts.ErrNotFound
		}
		return nil, consts.ErrPermissionDenied
	}
	next[consts.ID] = id
	s.hub.publish(Event{Kind: EventUpdate, Collection: collection, ID: id, Doc: next})
	return next, nil
}

// updateGuard 规则裁决的原子对应物，作为 mongo 条件更新的过滤条件
func (s *Store) updateGuard(collection string, prior, next Doc) map[string]any {
	switch collection {
	case consts.SessionCollection:
		return map[string]any{
			consts.FieldStatus:      consts.StatusActive,
			consts.FieldStrikeCount: bson.M{"$lte": cast.ToInt64(next[consts.FieldStrikeCount])},
		}
	case consts.AssignmentCollection:
		return map[string]any{
			consts.FieldTeacherId: cast.ToString(prior[consts.FieldTeacherId]),
		}
	default:
		return nil
	}
}

// Get 单文档读取，读规则裁决
func (s *Store) Get(ctx context.Context, caller Identity, collection, id string) (Doc, error) {
	b, err := s.backend(collection)
	if err != nil {
		return nil, err
	}
	doc, err := b.FindOneDoc(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.System {
		if err := rules.Allow(rules.Op{
			Kind:       rules.KindGet,
			Collection: collection,
			ID:         id,
			Caller:     caller.UID,
			Prior:      doc,
			Resolve:    s.resolve(ctx),
		}); err != nil {
			return nil, err
		}
	}
	doc[consts.ID] = id
	return doc, nil
}

// List 按过滤条件列出调用者有权读到的文档，读规则逐条裁决
func (s *Store) List(ctx context.Context, caller Identity, collection string, filter Doc) ([]Doc, error) {
	b, err := s.backend(collection)
	if err != nil {
		return nil, err
	}
	docs, err := b.FindDocs(ctx, filter)
	if err != nil {
		log.CtxError(ctx, "docstore list %s failed: %v", collection, err)
		return nil, consts.ErrTransient
	}
	out := make([]Doc, 0, len(docs))
	for _, doc := range docs {
		if !caller.System {
			if rules.Allow(rules.Op{
				Kind:       rules.KindGet,
				Collection: collection,
				ID:         cast.ToString(doc[consts.ID]),
				Caller:     caller.UID,
				Prior:      doc,
				Resolve:    s.resolve(ctx),
			}) != nil {
				continue
			}
		}
		out = append(out, doc)
	}
	return out, nil
}

// Delete 删除，学生侧对会话永远拿不到该权限
func (s *Store) Delete(ctx context.Context, caller Identity, collection, id string) error {
	b, err := s.backend(collection)
	if err != nil {
		return err
	}
	prior, err := b.FindOneDoc(ctx, id)
	if err != nil {
		return err
	}
	if !caller.System {
		if err := rules.Allow(rules.Op{
			Kind:       rules.KindDelete,
			Collection: collection,
			ID:         id,
			Caller:     caller.UID,
			Prior:      prior,
			Resolve:    s.resolve(ctx),
		}); err != nil {
			return err
		}
	}
	ok, err := b.DeleteDoc(ctx, id)
	if err != nil {
		log.CtxError(ctx, "docstore delete %s/%s failed: %v", collection, id, err)
		return consts.ErrTransient
	}
	if !ok {
		return consts.ErrNotFound
	}
	s.hub.publish(Event{Kind: EventDelete, Collection: collection, ID: id, Doc: prior})
	return nil
}

func cloneDoc(doc Doc) Doc {
	out := make(Doc, len(doc)+2)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// stripServerFields 服务端指派的时间戳不接受客户端取值
func stripServerFields(doc Doc) {
	delete(doc, consts.ID)
	delete(doc, consts.FieldCreatedAt)
	delete(doc, consts.FieldUpdatedAt)
	delete(doc, consts.FieldSubmittedAt)
}
