package session

import (
	"context"
	"errors"
	"focus-write/biz/infrastructure/config"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/util"
	
	"github.com/zeromicro/go-zero/core/stores/monc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoMapper struct {
	conn *monc.Model
}

func NewMongoMapper(config *config.Config) *MongoMapper {
	conn := monc.MustNewModel(config.Mongo.URL, config.Mongo.DB, consts.SessionCollection, config.Cache)
	return &MongoMapper{
		conn: conn,
	}
}

// FindOneDoc 按id取原始文档，供规则层裁决
func (m *MongoMapper) FindOneDoc(ctx context.Context, id string) (map[string]any, error) {
	var doc bson.M
	err := m.conn.FindOneNoCache(ctx, &doc, bson.M{consts.ID: id})
	switch {
	case err == nil:
		return util.NormalizeDoc(doc), nil
	case errors.Is(err, monc.ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments):
		return nil, consts.ErrNotFound
	default:
		return nil, err
	}
}

// InsertDoc 插入原始文档，_id 冲突映射为 ErrAlreadyExists
func (m *MongoMapper) InsertDoc(ctx context.Context, doc map[string]any) error {
	_, err := m.conn.InsertOneNoCache(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		return consts.ErrAlreadyExists
	}
	return err
}

// ApplyDoc 条件更新。guard 把"仍处于 active"之类的校验压进同一次
// mongo 写里，迟到的写入者在存储层原子地落败，而不是覆盖锁定的答卷
func (m *MongoMapper) ApplyDoc(ctx context.Context, id string, set map[string]any, guard map[string]any) (bool, error) {
	filter := bson.M{consts.ID: id}
	for k, v := range guard {
		filter[k] = v
	}
	res, err := m.conn.UpdateOneNoCache(ctx, filter, bson.M{"$set": bson.M(set)})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// DeleteDoc 会话规则层永远拒绝删除，保留此方法仅供运维脚本
func (m *MongoMapper) DeleteDoc(ctx context.Context, id string) (bool, error) {
	n, err := m.conn.DeleteOneNoCache(ctx, bson.M{consts.ID: id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindDocs 按过滤条件列出文档，最近更新在前
func (m *MongoMapper) FindDocs(ctx context.Context, filter map[string]any) ([]map[string]any, error) {
	var docs []bson.M
	err := m.conn.Find(ctx, &docs, bson.M(filter), &options.FindOptions{
		Sort: bson.M{consts.FieldUpdatedAt: -1},
	})
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, util.NormalizeDoc(d))
	}
	return out, nil
}
