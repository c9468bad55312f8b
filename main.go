package main

import (
	"context"
	"focus-write/provider"

	"github.com/cloudwego/hertz/pkg/app/server"
	prometheus "github.com/hertz-contrib/monitor-prometheus"
)

func main() {
	provider.Init()
	p := provider.Get()

	// 归档订阅常驻后台，Bucket 未配置时为空操作
	if err := p.ArchiveService.Start(context.Background()); err != nil {
		panic(err)
	}

	h := server.Default(
		server.WithHostPorts(p.Config.ListenOn),
		server.WithTracer(prometheus.NewServerTracer(":9091", "/metrics")),
	)

	customizedRegister(h)
	h.Spin()
}
