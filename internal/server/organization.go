package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/ottimo/presence/internal/obscontext"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	"github.com/ottimo/presence/internal/orgcontext"
)

func (s *Server) registerOrganizationRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/organizations", s.createOrganization)
	v1.GET("/organizations/:org_id", s.getOrganization)
	v1.POST("/organizations/:org_id/sites", s.createSite)
	v1.GET("/organizations/:org_id/sites", s.listSites)
	v1.GET("/organizations/:org_id/sites/:site_id", s.getSite)
}

func (s *Server) createOrganization(c *gin.Context) {
	var req organizationdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.CreateOrganization(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) getOrganization(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	org, err := s.organizationSvc.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) createSite(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	var req organizationdomain.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	site, err := s.organizationSvc.CreateSite(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (s *Server) listSites(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}

	sites, err := s.organizationSvc.ListSites(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

func (s *Server) getSite(c *gin.Context) {
	orgID, ok := pathID(c, "org_id")
	if !ok {
		return
	}
	siteID, ok := pathID(c, "site_id")
	if !ok {
		return
	}

	site, err := s.organizationSvc.GetSite(c.Request.Context(), orgID, siteID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// pathID parses a snowflake path parameter, aborting with a validation
// error when it is not a positive integer. The organization id also
// lands in the request context so downstream logs carry the tenant.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	id := snowflake.ID(n)
	if name == "org_id" {
		ctx := orgcontext.WithOrgID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(obscontext.WithOrgID(ctx, id.String()))
	}
	return id, true
}
