package api

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/seqwin/internal/version"
)

type Server struct {
	store   *ResultStore
	service *Service
}

func NewServer(store *ResultStore, service *Service) *Server {
	if store == nil {
		store = NewResultStore(DefaultStoreCapacity)
	}
	return &Server{
		store:   store,
		service: service,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/health", s.handleHealth)

	e.POST("/v1/project", s.handleProject)
	e.POST("/v1/project/grad", s.handleGrad)
	e.POST("/v1/project/batch", s.handleBatch)
	e.GET("/v1/project/:id", s.handleGetProjection)
	e.DELETE("/v1/project/:id", s.handleDeleteProjection)
}

func (s *Server) handleHealth(c *echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: version.String(),
	}
	if s.service != nil {
		resp.Backend = s.service.Backend()
		resp.Workers = s.service.Workers()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProject(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "projection service not configured", "", "")
	}
	req, err := decodeJSON[ProjectRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	resp, err := s.service.Project(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}
	s.store.Put(resp)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGrad(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "projection service not configured", "", "")
	}
	req, err := decodeJSON[GradRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	resp, err := s.service.Grad(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBatch(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "projection service not configured", "", "")
	}
	req, err := decodeJSON[BatchRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	data, err := s.service.Batch(c.Request().Context(), req.Requests)
	if err != nil {
		return writeServiceError(c, err)
	}
	for _, resp := range data {
		s.store.Put(resp)
	}
	return c.JSON(http.StatusOK, BatchResponse{Object: "list", Data: data})
}

func (s *Server) handleGetProjection(c *echo.Context) error {
	id := c.Param("id")
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "projection not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteProjection(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "projection not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "projection.deleted", Deleted: true})
}
