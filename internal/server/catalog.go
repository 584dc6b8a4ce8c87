package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/pxwallet/internal/catalog/domain"
)

type catalogServiceResponse struct {
	catalogdomain.ServiceEntry
	DerivedPlans []catalogdomain.Plan `json:"derived_plans"`
}

func (s *Server) ListCatalogServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.catalogSvc.ListServices(c.Request.Context())})
}

func (s *Server) GetCatalogService(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimSpace(c.Param("key"))

	entry, err := s.checkoutSvc.SelectService(ctx, key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plans, err := s.catalogSvc.Plans(ctx, entry.Key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": catalogServiceResponse{ServiceEntry: entry, DerivedPlans: plans}})
}
