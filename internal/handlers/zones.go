package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const errZoneNotFound = "zone not found"

// @Summary      List cached devices
// @Tags         zones
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "devices"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/zones [get]
// @Security     BearerAuth
func (h *Handler) listZones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.services.GetSnapshot()})
}

// @Summary      Get one zone by name
// @Tags         zones
// @Produce      json
// @Param        name  path      string  true  "zone name"
// @Success      200   {object}  map[string]interface{}  "zone, scheduled_setpoint"
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/zones/{name} [get]
// @Security     BearerAuth
func (h *Handler) getZone(c *gin.Context) {
	zone, ok := h.services.GetZoneByName(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errZoneNotFound})
		return
	}
	resp := gin.H{"zone": zone}
	if v := h.services.GetScheduledValue(zone.ID, time.Now()); v != nil {
		resp["scheduled_setpoint"] = *v
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Is a manual override currently permitted
// @Tags         zones
// @Produce      json
// @Param        name  path      string  true  "zone name"
// @Success      200   {object}  map[string]interface{}  "allowed"
// @Router       /api/v1/zones/{name}/override-allowed [get]
// @Security     BearerAuth
func (h *Handler) getOverrideAllowed(c *gin.Context) {
	name := c.Param("name")
	c.JSON(http.StatusOK, gin.H{
		"zone":    name,
		"allowed": h.services.IsOverrideAllowed(name, time.Now()),
	})
}
