package service

import (
	"bytes"
	"context"
	"focus-write/biz/infrastructure/config"
	"focus-write/biz/infrastructure/consts"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/util/log"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/google/uuid"
	"github.com/google/wire"
	"github.com/spf13/cast"
)

// 归档服务。答卷一旦锁定就成为归档产物，这里把正文落到对象存储，
// 教师删除作业留下的孤儿会话也因此有处可查

type ArchiveService struct {
	Config *config.Config
	Store  *docstore.Store

	uploader *s3manager.Uploader
}

var ArchiveServiceSet = wire.NewSet(
	NewArchiveService,
)

func NewArchiveService(c *config.Config, store *docstore.Store) (*ArchiveService, error) {
	s := &ArchiveService{Config: c, Store: store}
	if c.Archive.Bucket == "" {
		return s, nil
	}
	sess, err := awssession.NewSession(&aws.Config{
		Region:           aws.String(c.Archive.Region),
		Endpoint:         aws.String(c.Archive.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(c.Archive.AccessKeyId, c.Archive.SecretAccessKey, ""),
	})
	if err != nil {
		return nil, err
	}
	s.uploader = s3manager.NewUploader(sess)
	return s, nil
}

// Start 订阅会话变更并归档锁定事件，随 ctx 结束
func (s *ArchiveService) Start(ctx context.Context) error {
	if s.uploader == nil {
		log.Info("archive disabled: no bucket configured")
		return nil
	}
	events, cancel, err := s.Store.Subscribe(ctx, docstore.System, consts.SessionCollection, nil)
	if err != nil {
		return err
	}
	gopool.Go(func() {
		defer cancel()
		for ev := range events {
			// 快照回放的是历史锁定，只归档本次运行内的转换
			if ev.Kind != docstore.EventUpdate {
				continue
			}
			if cast.ToString(ev.Doc[consts.FieldStatus]) != consts.StatusLocked {
				continue
			}
			e := ev
			gopool.Go(func() { s.archive(ctx, e) })
		}
	})
	return nil
}

func (s *ArchiveService) archive(ctx context.Context, ev docstore.Event) {
	key := fmt.Sprintf("submissions/%s/%s_%s.txt",
		cast.ToString(ev.Doc[consts.FieldAssignmentId]),
		cast.ToString(ev.Doc[consts.FieldStudentId]),
		uuid.New().String(),
	)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.Config.Archive.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(cast.ToString(ev.Doc[consts.FieldContent]))),
		ContentType: aws.String(consts.ContentTypeText),
	})
	if err != nil {
		log.Error("归档答卷失败 %s: %v", ev.ID, err)
		return
	}
	log.Info("archived session %s to %s", ev.ID, key)
}
