package provider

import (
	"focus-write/biz/application/proctor"
	"focus-write/biz/application/service"
	"focus-write/biz/infrastructure/cache"
	"focus-write/biz/infrastructure/config"
	"focus-write/biz/infrastructure/docstore"
	"focus-write/biz/infrastructure/repository/assignment"
	"focus-write/biz/infrastructure/repository/session"
	"time"

	"github.com/google/wire"
)

var provider *Provider

func Init() {
	var err error
	provider, err = NewProvider()
	if err != nil {
		panic(err)
	}
}

// Provider 提供controller依赖的对象
type Provider struct {
	Config              *config.Config
	AssignmentService   service.IAssignmentService
	SessionService      service.ISessionService
	WriteGatewayService service.IWriteGatewayService
	ArchiveService      *service.ArchiveService
	MachineFactory      *proctor.MachineFactory
}

// NewProctorConfig 监考参数从配置换算为状态机口径
func NewProctorConfig(c *config.Config) *proctor.Config {
	return &proctor.Config{
		StrikeDebounce:       time.Duration(c.Proctor.StrikeDebounceMs) * time.Millisecond,
		AutosaveInterval:     time.Duration(c.Proctor.AutosaveIntervalMs) * time.Millisecond,
		SandboxReturnSeconds: c.Proctor.SandboxReturnSeconds,
	}
}

func Get() *Provider {
	return provider
}

var ApplicationSet = wire.NewSet(
	service.AssignmentServiceSet,
	service.SessionServiceSet,
	service.WriteGatewayServiceSet,
	service.ArchiveServiceSet,
)

var InfrastructureSet = wire.NewSet(
	config.NewConfig,
	assignment.NewMongoMapper,
	session.NewMongoMapper,
	docstore.NewStore,
	cache.NewExportCacheMapper,
	wire.Bind(new(cache.IExportCacheMapper), new(*cache.ExportCacheMapper)),
	NewProctorConfig,
	proctor.MachineFactorySet,
)

var AllProvider = wire.NewSet(
	ApplicationSet,
	InfrastructureSet,
)
