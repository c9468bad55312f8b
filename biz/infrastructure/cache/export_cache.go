package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"focus-write/biz/application/dto/focus/write"
	"focus-write/biz/infrastructure/config"
	"focus-write/biz/infrastructure/redis"

	gozero_redis "github.com/zeromicro/go-zero/core/stores/redis"
)

const (
	exportSessionCachePrefix = "export_session"
	exportSessionCacheExpire = 3600 // 1小时
)

type IExportCacheMapper interface {
	Get(ctx context.Context, id string) (*write.ExportSessionResp, error)
	Set(ctx context.Context, id string, data *write.ExportSessionResp) error
	Delete(ctx context.Context, id string) error
}

type ExportCacheMapper struct {
	rds *gozero_redis.Redis
}

func NewExportCacheMapper(config *config.Config) *ExportCacheMapper {
	return &ExportCacheMapper{
		rds: redis.GetRedis(config),
	}
}

// Get 从缓存获取导出结果
func (m *ExportCacheMapper) Get(ctx context.Context, id string) (*write.ExportSessionResp, error) {
	cacheKey := m.buildCacheKey(id)

	cachedData, err := m.rds.GetCtx(ctx, cacheKey)
	if err != nil {
		return nil, err
	}

	if cachedData == "" {
		return nil, fmt.Errorf("cache miss")
	}

	var result write.ExportSessionResp
	if err := json.Unmarshal([]byte(cachedData), &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached data failed: %w", err)
	}

	return &result, nil
}

// Set 将导出结果存入缓存
func (m *ExportCacheMapper) Set(ctx context.Context, id string, data *write.ExportSessionResp) error {
	cacheKey := m.buildCacheKey(id)

	resultBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data failed: %w", err)
	}

	return m.rds.SetexCtx(ctx, cacheKey, string(resultBytes), exportSessionCacheExpire)
}

// Delete 删除缓存
func (m *ExportCacheMapper) Delete(ctx context.Context, id string) error {
	cacheKey := m.buildCacheKey(id)
	_, err := m.rds.DelCtx(ctx, cacheKey)
	return err
}

// buildCacheKey 构造缓存key
func (m *ExportCacheMapper) buildCacheKey(id string) string {
	return fmt.Sprintf("%s:%s", exportSessionCachePrefix, id)
}
