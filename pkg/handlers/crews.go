package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/citytransit/depot-scheduler-go/pkg/models"
	"github.com/citytransit/depot-scheduler-go/pkg/store"
)

// validateQualifications rejects unknown tags outright. Silently dropping
// them would leave an empty set, which the rules engine reads as qualified
// for every bus type.
func validateQualifications(quals []string) error {
	for _, q := range quals {
		known := false
		for _, t := range models.BusTypes {
			if q == t {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown qualification %q; valid types are %s", q, strings.Join(models.BusTypes, ", "))
		}
	}
	return nil
}

// ListCrews lists crew with optional role/status filters; archived records
// are included only with ?archived=true.
func (h *Handler) ListCrews(c *gin.Context) {
	q := h.DB.Model(&models.Crew{})
	if c.Query("archived") != "true" {
		q = q.Where("is_archived = ?", false)
	}
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var crews []models.Crew
	if err := q.Order("id").Find(&crews).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, crews)
}

// GetCrew returns one crew member.
func (h *Handler) GetCrew(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crew id"})
		return
	}
	crew, err := h.Store.CrewByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if crew == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crew not found"})
		return
	}
	c.JSON(http.StatusOK, crew)
}

type crewCreate struct {
	Name           string                  `json:"name" binding:"required"`
	Role           string                  `json:"role" binding:"required"`
	Status         string                  `json:"status"`
	Avatar         string                  `json:"avatar"`
	Qualifications []string                `json:"qualifications"`
	Unavailability []models.Unavailability `json:"unavailability"`
}

// CreateCrew registers a crew member and assigns the next public crew code.
func (h *Handler) CreateCrew(c *gin.Context) {
	var req crewCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != models.RoleDriver && req.Role != models.RoleConductor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be Driver or Conductor"})
		return
	}
	if err := validateQualifications(req.Qualifications); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	seq, err := h.Store.NextCounter("crewId")
	if err != nil {
		h.respondError(c, err)
		return
	}

	crew := models.Crew{
		Name:           req.Name,
		CrewID:         fmt.Sprintf("DTC-C%03d", seq),
		Role:           req.Role,
		Status:         req.Status,
		Avatar:         req.Avatar,
		Qualifications: req.Qualifications,
		Unavailability: req.Unavailability,
		CreatedBy:      actor(c),
		UpdatedBy:      actor(c),
	}
	if crew.Status == "" {
		crew.Status = models.CrewAvailable
	}
	if err := h.DB.Create(&crew).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, crew)
}

type crewUpdate struct {
	Name           *string                  `json:"name"`
	Status         *string                  `json:"status"`
	Avatar         *string                  `json:"avatar"`
	Qualifications *[]string                `json:"qualifications"`
	Unavailability *[]models.Unavailability `json:"unavailability"`
	IsArchived     *bool                    `json:"isArchived"`
}

// UpdateCrew applies a partial update. Role and lastDutyEnd are not
// editable through the API; the orchestrator owns lastDutyEnd.
func (h *Handler) UpdateCrew(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crew id"})
		return
	}
	var req crewUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crew, err := h.Store.CrewByID(uint(id))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if crew == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crew not found"})
		return
	}

	if req.Name != nil {
		crew.Name = *req.Name
	}
	if req.Status != nil {
		crew.Status = *req.Status
	}
	if req.Avatar != nil {
		crew.Avatar = *req.Avatar
	}
	if req.Qualifications != nil {
		if err := validateQualifications(*req.Qualifications); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		crew.Qualifications = *req.Qualifications
	}
	if req.Unavailability != nil {
		crew.Unavailability = *req.Unavailability
	}
	if req.IsArchived != nil {
		crew.IsArchived = *req.IsArchived
	}
	crew.UpdatedBy = actor(c)

	if err := h.DB.Save(crew).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, crew)
}

// ArchiveCrew soft-deletes a crew member; history stays queryable.
func (h *Handler) ArchiveCrew(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid crew id"})
		return
	}
	res := h.DB.Model(&models.Crew{}).Where("id = ?", id).
		Updates(map[string]any{"is_archived": true, "updated_by": actor(c)})
	if res.Error != nil {
		h.respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Crew not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Archived"})
}

// ExportCrewsCSV exports the unarchived roster as CSV.
func (h *Handler) ExportCrewsCSV(c *gin.Context) {
	crews, err := h.Store.Crews(store.CrewFilter{Role: c.Query("role"), Status: c.Query("status")})
	if err != nil {
		h.respondError(c, err)
		return
	}

	var out strings.Builder
	w := csv.NewWriter(&out)
	w.Write([]string{"crew_id", "name", "role", "status", "qualifications", "last_duty_end"})
	for _, cr := range crews {
		lastDuty := ""
		if cr.LastDutyEnd != nil {
			lastDuty = cr.LastDutyEnd.Format(time.RFC3339)
		}
		w.Write([]string{cr.CrewID, cr.Name, cr.Role, cr.Status, strings.Join(cr.Qualifications, "|"), lastDuty})
	}
	w.Flush()

	c.Header("Content-Disposition", "attachment; filename=crews.csv")
	c.Data(http.StatusOK, "text/csv", []byte(out.String()))
}
