package api

import "github.com/labstack/echo/v4"

// RegisterRoutes attaches the file API to e.
func RegisterRoutes(e *echo.Echo, h *Handler, allowDeletion bool) {
	e.GET("/", h.HandleIndex)
	e.GET("/health", h.HandleHealth)

	v1 := e.Group("/api/v1")

	v1.POST("/files", h.HandleUploadFile)
	v1.GET("/files", h.HandleListFiles)
	v1.GET("/files/:id/progress", h.HandleGetProgress)
	v1.GET("/files/:id", h.HandleGetContent)
	v1.GET("/files/:id/content/msgpack", h.HandleGetContentMsgpack)
	v1.GET("/files/:id/download", h.HandleDownloadFile)

	if allowDeletion {
		v1.DELETE("/files/:id", h.HandleDeleteFile)
	}
}
