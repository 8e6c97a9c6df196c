package store

import (
	"encoding/json"
	"sort"

	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/models"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
	"github.com/zulandar/floorboard/internal/techdoc"
	"gorm.io/gorm"
)

// This file is the only place that knows both the storage schema in
// internal/models and the entities the rest of the code works with.
// Storage names that differ from entity names:
//
//	task_assigned_users.user_id  -> Task.AssigneeIDs
//	tasks.plan_quantity          -> Task.PlannedQuantity
//	tasks.done_quantity          -> Task.CompletedQuantity
//	tasks.task_type              -> Task.Type
//	orders.work_cycle_id         -> Order.WorkCycleID
//	job_stages.default_responsible (JSON) -> Stage.DefaultResponsible
//	setup_maps.drawing_*         -> SetupMap.Drawing
//	setup_maps.consumption (JSON) -> SetupMap.Consumption

func toTaskModel(t task.Task) models.Task {
	m := models.Task{
		ID:              t.ID,
		TaskType:        string(t.Type),
		Title:           t.Title,
		Description:     t.Description,
		Status:          string(t.Status),
		Priority:        string(t.Priority),
		CreatedBy:       t.CreatedBy,
		OrderID:         strPtr(t.OrderID),
		StageID:         strPtr(t.StageID),
		PlanQuantity:    t.PlannedQuantity,
		DoneQuantity:    t.CompletedQuantity,
		PendingQuantity: t.PendingQuantity,
		IsFinalStage:    t.IsFinalStage,
		Deadline:        t.Deadline,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.DeletedAt != nil {
		m.DeletedAt = gorm.DeletedAt{Time: *t.DeletedAt, Valid: true}
	}
	m.AssignedUsers = toAssignments(t.ID, t.AssigneeIDs)
	return m
}

func toAssignments(taskID string, userIDs []string) []models.TaskAssignment {
	out := make([]models.TaskAssignment, 0, len(userIDs))
	for _, uid := range userIDs {
		out = append(out, models.TaskAssignment{TaskID: taskID, UserID: uid})
	}
	return out
}

func fromTaskModel(m models.Task) task.Task {
	t := task.Task{
		ID:                m.ID,
		Type:              task.Type(m.TaskType),
		Title:             m.Title,
		Description:       m.Description,
		Status:            task.Status(m.Status),
		Priority:          task.Priority(m.Priority),
		CreatedBy:         m.CreatedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Deadline:          m.Deadline,
		OrderID:           deref(m.OrderID),
		StageID:           deref(m.StageID),
		PlannedQuantity:   m.PlanQuantity,
		CompletedQuantity: m.DoneQuantity,
		PendingQuantity:   m.PendingQuantity,
		IsFinalStage:      m.IsFinalStage,
	}
	if m.DeletedAt.Valid {
		d := m.DeletedAt.Time
		t.DeletedAt = &d
	}
	for _, a := range m.AssignedUsers {
		t.AssigneeIDs = append(t.AssigneeIDs, a.UserID)
	}
	sort.Strings(t.AssigneeIDs)
	return t
}

func toOrderModel(o production.Order) models.Order {
	return models.Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		ProductID:   o.ProductID,
		WorkCycleID: strPtr(o.WorkCycleID),
		Quantity:    o.Quantity,
		Deadline:    o.Deadline,
	}
}

func fromOrderModel(m models.Order) production.Order {
	return production.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		ProductID:   m.ProductID,
		WorkCycleID: deref(m.WorkCycleID),
		Quantity:    m.Quantity,
		Deadline:    m.Deadline,
	}
}

func toCycleModel(c production.JobCycle) (models.JobCycle, error) {
	m := models.JobCycle{ID: c.ID, Name: c.Name}
	for i, s := range c.Stages {
		resp, err := marshalList(s.DefaultResponsible)
		if err != nil {
			return models.JobCycle{}, err
		}
		m.Stages = append(m.Stages, models.JobStage{
			ID:                 s.ID,
			CycleID:            c.ID,
			Position:           i,
			Name:               s.Name,
			Machine:            s.Machine,
			Notes:              s.Notes,
			DefaultResponsible: resp,
			DefaultCount:       s.DefaultCount,
			SetupMapID:         strPtr(s.SetupMapID),
		})
	}
	return m, nil
}

func fromCycleModel(m models.JobCycle) production.JobCycle {
	stages := append([]models.JobStage(nil), m.Stages...)
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

	c := production.JobCycle{ID: m.ID, Name: m.Name}
	for _, s := range stages {
		var resp []string
		_ = json.Unmarshal([]byte(s.DefaultResponsible), &resp)
		c.Stages = append(c.Stages, production.Stage{
			ID:                 s.ID,
			Name:               s.Name,
			Machine:            s.Machine,
			Notes:              s.Notes,
			DefaultResponsible: resp,
			DefaultCount:       s.DefaultCount,
			SetupMapID:         deref(s.SetupMapID),
		})
	}
	return c
}

func toProductModel(p techdoc.Product) models.Product {
	return models.Product{ID: p.ID, Name: p.Name, DrawingID: strPtr(p.DrawingID)}
}

func fromProductModel(m models.Product) techdoc.Product {
	return techdoc.Product{ID: m.ID, Name: m.Name, DrawingID: deref(m.DrawingID)}
}

func toDrawingModel(d techdoc.Drawing) models.Drawing {
	return models.Drawing{ID: d.ID, Name: d.Name, URL: d.URL}
}

func fromDrawingModel(m models.Drawing) techdoc.Drawing {
	return techdoc.Drawing{ID: m.ID, Name: m.Name, URL: m.URL}
}

func toSetupMapModel(sm techdoc.SetupMap) (models.SetupMap, error) {
	consumption, err := marshalList(sm.Consumption)
	if err != nil {
		return models.SetupMap{}, err
	}
	m := models.SetupMap{
		ID:               sm.ID,
		Name:             sm.Name,
		ProductCatalogID: sm.ProductCatalogID,
		PhotoURL:         sm.PhotoURL,
		Consumption:      consumption,
	}
	if sm.Drawing != nil {
		m.DrawingID = sm.Drawing.ID
		m.DrawingURL = sm.Drawing.URL
		m.DrawingName = sm.Drawing.Name
	}
	for i, b := range sm.Blocks {
		m.Blocks = append(m.Blocks, models.SetupBlock{
			SetupMapID: sm.ID,
			Position:   i,
			ToolNumber: b.ToolNumber,
			ToolName:   b.ToolName,
			ToolID:     strPtr(b.ToolID),
			Settings:   b.Settings,
		})
	}
	return m, nil
}

func fromSetupMapModel(m models.SetupMap) techdoc.SetupMap {
	sm := techdoc.SetupMap{
		ID:               m.ID,
		Name:             m.Name,
		ProductCatalogID: m.ProductCatalogID,
		PhotoURL:         m.PhotoURL,
		Blocks:           []techdoc.SetupBlock{},
	}
	if m.DrawingID != "" || m.DrawingURL != "" {
		sm.Drawing = &techdoc.Drawing{ID: m.DrawingID, Name: m.DrawingName, URL: m.DrawingURL}
	}
	_ = json.Unmarshal([]byte(m.Consumption), &sm.Consumption)

	blocks := append([]models.SetupBlock(nil), m.Blocks...)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Position < blocks[j].Position })
	for _, b := range blocks {
		sm.Blocks = append(sm.Blocks, techdoc.SetupBlock{
			ToolNumber: b.ToolNumber,
			ToolName:   b.ToolName,
			ToolID:     deref(b.ToolID),
			Settings:   b.Settings,
		})
	}
	return sm
}

func toRoleModel(rc *access.RoleConfig) models.RoleConfig {
	m := models.RoleConfig{ID: rc.ID, Name: rc.Name}
	keys := make([]string, 0, len(rc.Permissions))
	for k := range rc.Permissions {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := rc.Permissions[access.ModuleKey(k)]
		m.Permissions = append(m.Permissions, models.RolePermission{
			RoleID:    rc.ID,
			ModuleKey: k,
			CanView:   p.View,
			CanEdit:   p.Edit,
		})
	}
	return m
}

// fromRoleModel drops rows whose module key is no longer known, so a stale
// key in storage can never grant anything.
func fromRoleModel(m models.RoleConfig) *access.RoleConfig {
	rc := &access.RoleConfig{ID: m.ID, Name: m.Name, Permissions: make(map[access.ModuleKey]access.Permission, len(m.Permissions))}
	for _, p := range m.Permissions {
		key, err := access.ParseModuleKey(p.ModuleKey)
		if err != nil {
			continue
		}
		rc.Permissions[key] = access.Permission{View: p.CanView, Edit: p.CanEdit}
	}
	return rc
}

func fromUserModel(m models.User) User {
	return User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      m.Role,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func fromNotificationModel(m models.Notification) Notification {
	return Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Message:   m.Message,
		Kind:      m.Kind,
		TaskID:    m.TaskID,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}

// marshalList encodes a slice as a JSON array; nil encodes as [] so JSON
// columns never hold NULL.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
