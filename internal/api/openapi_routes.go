package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/highscore-api/docs"
)

// registerOpenAPIRoutes 提供 /openapi.json
func registerOpenAPIRoutes(engine *gin.Engine) {
	engine.GET("/openapi.json", serveOpenAPI)
}

func serveOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(docs.SwaggerInfo.ReadDoc()))
}
