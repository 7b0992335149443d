package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

const (
	dateLayout         = "2006-01-02"
	maxWorkHourEntries = 1000
)

type workHourEntry struct {
	ProjectID uint    `json:"project_id"`
	UserID    uint    `json:"user_id"`
	WorkDate  string  `json:"work_date"`
	Hours     float64 `json:"hours"`
	Note      string  `json:"note"`
}

type bulkWorkHoursRequest struct {
	Entries []workHourEntry `json:"entries"`
}

type workHourKey struct {
	projectID uint
	userID    uint
	date      string
}

// projectHours aggregates one bulk update for a single project's audit event.
type projectHours struct {
	members map[uint]struct{}
	total   float64
	entries int
}

// BulkUpdateWorkHours upserts many (project, user, date) entries in one
// transaction and then writes one audit event per affected project.
func (h *Handler) BulkUpdateWorkHours(c *gin.Context) {
	var req bulkWorkHoursRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entries) == 0 || len(req.Entries) > maxWorkHourEntries {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("between 1 and %d entries required", maxWorkHourEntries))
		return
	}

	rows := make([]models.WorkHour, 0, len(req.Entries))
	projectIDs := map[uint]struct{}{}
	userIDs := map[uint]struct{}{}
	seen := make(map[workHourKey]struct{}, len(req.Entries))
	for i, e := range req.Entries {
		day, err := time.Parse(dateLayout, e.WorkDate)
		if err != nil {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("entries[%d]: work_date must be YYYY-MM-DD", i))
			return
		}
		if e.ProjectID == 0 || e.UserID == 0 {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("entries[%d]: project_id and user_id are required", i))
			return
		}
		if e.Hours < 0 || e.Hours > 24 {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("entries[%d]: hours must be between 0 and 24", i))
			return
		}
		// one row per key: a repeat would overwrite the earlier entry and skew the audited totals
		key := workHourKey{e.ProjectID, e.UserID, e.WorkDate}
		if _, dup := seen[key]; dup {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("entries[%d]: duplicate project/user/date", i))
			return
		}
		seen[key] = struct{}{}
		rows = append(rows, models.WorkHour{
			ProjectID: e.ProjectID,
			UserID:    e.UserID,
			WorkDate:  day,
			Hours:     e.Hours,
			Note:      e.Note,
		})
		projectIDs[e.ProjectID] = struct{}{}
		userIDs[e.UserID] = struct{}{}
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	var projects []models.Project
	if err := h.db.WithContext(ctx).Where("id IN ?", keys(projectIDs)).Find(&projects).Error; err != nil {
		h.fail(c, err)
		return
	}
	if len(projects) != len(projectIDs) {
		respondError(c, http.StatusBadRequest, "unknown project in entries")
		return
	}
	var users int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", keys(userIDs)).Count(&users).Error; err != nil {
		h.fail(c, err)
		return
	}
	if int(users) != len(userIDs) {
		respondError(c, http.StatusBadRequest, "unknown user in entries")
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}, {Name: "work_date"}},
				DoUpdates: clause.AssignmentColumns([]string{"hours", "note", "updated_at"}),
			}).Create(&rows[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.audit.LogBatch(c.Request.Context(), workHourEvents(actorFrom(c).ID, requestMeta(c), projects, rows))
	c.JSON(http.StatusOK, gin.H{"updated": len(rows), "projects": len(projects)})
}

// workHourEvents builds one event per project with the member ids and the
// summed hours of the rows written for it.
func workHourEvents(actorID uint, meta *audit.RequestMeta, projects []models.Project, rows []models.WorkHour) []audit.Event {
	byProject := map[uint]*projectHours{}
	for _, r := range rows {
		agg, ok := byProject[r.ProjectID]
		if !ok {
			agg = &projectHours{members: map[uint]struct{}{}}
			byProject[r.ProjectID] = agg
		}
		agg.members[r.UserID] = struct{}{}
		agg.total += r.Hours
		agg.entries++
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })

	events := make([]audit.Event, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		agg := byProject[p.ID]
		if agg == nil {
			continue
		}
		id := p.ID
		name := p.Code
		events = append(events, audit.Event{
			ActorID:    actorID,
			Action:     audit.ActionWorkHourUpdate,
			EntityType: audit.EntityWorkHour,
			EntityID:   &id,
			EntityName: &name,
			Details: map[string]any{
				"project_id":   p.ID,
				"project_code": p.Code,
				"member_ids":   keys(agg.members),
				"total_hours":  agg.total,
				"entries":      agg.entries,
			},
			Request: meta,
		})
	}
	return events
}

func keys(set map[uint]struct{}) []uint {
	out := make([]uint, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
