package main

import (
	handler "focus-write/biz/adaptor/controller"
	"focus-write/biz/adaptor/controller/apigateway"

	"github.com/cloudwego/hertz/pkg/app/server"
)

// customizeRegister registers customize routers.
func customizedRegister(r *server.Hertz) {
	r.GET("/ping", handler.Ping)

	// 版本化API路由
	apiV1 := r.Group("/api/v1")
	{
		assignment := apiV1.Group("/assignment")
		{
			assignment.POST("/create", apigateway.CreateAssignmentV1)
			assignment.GET("/get", apigateway.GetAssignmentV1)
			assignment.POST("/list", apigateway.ListAssignmentsV1)
			assignment.POST("/delete", apigateway.DeleteAssignmentV1)
		}

		session := apiV1.Group("/session")
		{
			session.POST("/list", apigateway.ListSessionsV1)
			session.GET("/get", apigateway.GetSessionV1)
			session.GET("/export", apigateway.ExportSessionV1)
			session.GET("/watch", apigateway.WatchSessionsV1)
		}

		// 学生写入网关：未认证直达文档库，规则层裁决
		wr := apiV1.Group("/write")
		{
			wr.POST("/start", apigateway.StartWriteV1)
			wr.POST("/save", apigateway.SaveWriteV1)
			wr.POST("/submit", apigateway.SubmitWriteV1)
		}
	}
}
