package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:32")
	assertGormTag(t, typ, "TaskType", "default:simple")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "Status", "size:16")
	assertGormTag(t, typ, "Status", "default:todo")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Priority", "default:medium")
	assertGormTag(t, typ, "OrderID", "index")
	assertGormTag(t, typ, "DeletedAt", "index")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "OrderID", "*string")
	assertFieldType(t, typ, "StageID", "*string")
	assertFieldType(t, typ, "PlanQuantity", "int")
	assertFieldType(t, typ, "DoneQuantity", "int")
	assertFieldType(t, typ, "PendingQuantity", "int")
	assertFieldType(t, typ, "IsFinalStage", "bool")
	assertFieldType(t, typ, "Deadline", "*time.Time")
	assertFieldType(t, typ, "DeletedAt", "gorm.DeletedAt")
}

func TestTask_Relations(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "AssignedUsers", "foreignKey:TaskID")
	assertFieldType(t, typ, "AssignedUsers", "[]models.TaskAssignment")
}

func TestTaskAssignment_Fields(t *testing.T) {
	typ := reflect.TypeOf(TaskAssignment{})

	assertGormTag(t, typ, "TaskID", "primaryKey")
	assertGormTag(t, typ, "UserID", "primaryKey")
	assertGormTag(t, typ, "UserID", "index")

	if got := (TaskAssignment{}).TableName(); got != "task_assigned_users" {
		t.Errorf("TaskAssignment.TableName() = %q, want %q", got, "task_assigned_users")
	}
}

func TestTaskEvent_Fields(t *testing.T) {
	typ := reflect.TypeOf(TaskEvent{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "TaskID", "index")
	assertGormTag(t, typ, "Action", "size:16")
	assertGormTag(t, typ, "CreatedAt", "index")

	assertFieldType(t, typ, "Quantity", "int")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestRoleConfig_Fields(t *testing.T) {
	typ := reflect.TypeOf(RoleConfig{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Permissions", "foreignKey:RoleID")
	assertFieldType(t, typ, "Permissions", "[]models.RolePermission")

	perm := reflect.TypeOf(RolePermission{})
	assertGormTag(t, perm, "RoleID", "primaryKey")
	assertGormTag(t, perm, "ModuleKey", "primaryKey")
	assertGormTag(t, perm, "CanView", "default:false")
	assertGormTag(t, perm, "CanEdit", "default:false")
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Role", "index")
	assertGormTag(t, typ, "Active", "default:true")

	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestOrder_Fields(t *testing.T) {
	typ := reflect.TypeOf(Order{})

	assertGormTag(t, typ, "OrderNumber", "uniqueIndex")
	assertGormTag(t, typ, "OrderNumber", "not null")
	assertGormTag(t, typ, "ProductID", "index")

	assertFieldType(t, typ, "WorkCycleID", "*string")
	assertFieldType(t, typ, "Quantity", "int")
	assertFieldType(t, typ, "Deadline", "*time.Time")
}

func TestJobCycle_Relations(t *testing.T) {
	typ := reflect.TypeOf(JobCycle{})
	assertGormTag(t, typ, "Stages", "foreignKey:CycleID")
	assertFieldType(t, typ, "Stages", "[]models.JobStage")

	stage := reflect.TypeOf(JobStage{})
	assertGormTag(t, stage, "CycleID", "index")
	assertGormTag(t, stage, "DefaultResponsible", "type:json")
	assertFieldType(t, stage, "SetupMapID", "*string")
	assertFieldType(t, stage, "Position", "int")
}

func TestSetupMap_Fields(t *testing.T) {
	typ := reflect.TypeOf(SetupMap{})

	assertGormTag(t, typ, "ProductCatalogID", "index")
	assertGormTag(t, typ, "Consumption", "type:json")
	assertGormTag(t, typ, "Blocks", "foreignKey:SetupMapID")
	assertFieldType(t, typ, "Blocks", "[]models.SetupBlock")

	block := reflect.TypeOf(SetupBlock{})
	assertGormTag(t, block, "ID", "autoIncrement")
	assertGormTag(t, block, "SetupMapID", "index")
	assertFieldType(t, block, "ToolID", "*string")
}

func TestNotification_Fields(t *testing.T) {
	typ := reflect.TypeOf(Notification{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "UserID", "index")
	assertGormTag(t, typ, "Kind", "default:info")
	assertGormTag(t, typ, "Read", "index")

	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestTask_ZeroValue(t *testing.T) {
	var task Task
	if task.DeletedAt.Valid {
		t.Error("zero Task should not be soft-deleted")
	}
	if task.Deadline != nil {
		t.Error("zero Task should have nil Deadline")
	}
	if !task.CreatedAt.Equal(time.Time{}) {
		t.Error("zero Task should have zero CreatedAt")
	}
}
