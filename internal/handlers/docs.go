package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	// registers the swagger spec
	_ "github.com/posbridge/pricing-service/docs"
)

// RegisterDocs serves the swagger UI and doc.json under /docs
func RegisterDocs(router gin.IRoutes) {
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
