package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed_NilActor(t *testing.T) {
	cfg := &RoleConfig{ID: "lead", Name: "Lead", Permissions: map[ModuleKey]Permission{
		ModuleTasks: {View: true, Edit: true},
	}}
	assert.False(t, CanView(nil, cfg, ModuleTasks))
	assert.False(t, CanEdit(nil, cfg, ModuleTasks))
}

func TestAllowed_AdminBypass(t *testing.T) {
	admin := &Actor{ID: "u1", Role: RoleAdmin}
	for _, k := range AllModules() {
		assert.True(t, CanView(admin, nil, k), "admin view %s with no config", k)
		assert.True(t, CanEdit(admin, nil, k), "admin edit %s with no config", k)
		assert.True(t, CanEdit(admin, &RoleConfig{}, k), "admin edit %s with empty config", k)
	}
}

func TestAllowed_NotLoadedFailsClosed(t *testing.T) {
	worker := &Actor{ID: "u2", Role: RoleWorker}
	for _, k := range AllModules() {
		assert.False(t, CanView(worker, nil, k))
		assert.False(t, CanEdit(worker, nil, k))
	}
}

func TestAllowed_AbsentKeyDenied(t *testing.T) {
	worker := &Actor{ID: "u2", Role: RoleWorker}
	cfg := &RoleConfig{ID: RoleWorker, Name: "Worker", Permissions: map[ModuleKey]Permission{
		ModuleTasks: {View: true},
	}}
	for _, k := range AllModules() {
		if k == ModuleTasks {
			continue
		}
		assert.False(t, CanView(worker, cfg, k), "view %s", k)
		assert.False(t, CanEdit(worker, cfg, k), "edit %s", k)
	}
	assert.True(t, CanView(worker, cfg, ModuleTasks))
	assert.False(t, CanEdit(worker, cfg, ModuleTasks))
}

func TestAllowed_NilPermissionMap(t *testing.T) {
	worker := &Actor{ID: "u2", Role: "qc"}
	cfg := &RoleConfig{ID: "qc", Name: "QC"}
	assert.False(t, CanView(worker, cfg, ModuleOrders))
}

func TestAllowed_NoInheritance(t *testing.T) {
	actor := &Actor{ID: "u3", Role: "planner"}

	childOnly := &RoleConfig{ID: "planner", Name: "Planner", Permissions: map[ModuleKey]Permission{
		ModuleProductsCatalog: {View: true, Edit: true},
	}}
	assert.True(t, CanView(actor, childOnly, ModuleProductsCatalog))
	assert.False(t, CanView(actor, childOnly, ModuleProducts))
	assert.False(t, CanEdit(actor, childOnly, ModuleProducts))

	parentOnly := &RoleConfig{ID: "planner", Name: "Planner", Permissions: map[ModuleKey]Permission{
		ModuleProducts: {View: true, Edit: true},
	}}
	assert.True(t, CanEdit(actor, parentOnly, ModuleProducts))
	assert.False(t, CanView(actor, parentOnly, ModuleProductsCatalog))
	assert.False(t, CanView(actor, parentOnly, ModuleProductsDrawings))
}

func TestAllowed_EditWithoutViewHonoured(t *testing.T) {
	actor := &Actor{ID: "u4", Role: "odd"}
	cfg := &RoleConfig{ID: "odd", Name: "Odd", Permissions: map[ModuleKey]Permission{
		ModuleInventory: {View: false, Edit: true},
	}}
	assert.False(t, CanView(actor, cfg, ModuleInventory))
	assert.True(t, CanEdit(actor, cfg, ModuleInventory))
}

func TestParseModuleKey(t *testing.T) {
	tests := []struct {
		in      string
		want    ModuleKey
		wantErr bool
	}{
		{"tasks", ModuleTasks, false},
		{" products_catalog ", ModuleProductsCatalog, false},
		{"task", "", true},
		{"Tasks", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseModuleKey(tt.in)
		if tt.wantErr {
			require.Error(t, err, "ParseModuleKey(%q)", tt.in)
			assert.True(t, errors.Is(err, ErrUnknownModule))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestModuleKey_Parent(t *testing.T) {
	p, ok := ModuleProductsCatalog.Parent()
	assert.True(t, ok)
	assert.Equal(t, ModuleProducts, p)

	_, ok = ModuleTasks.Parent()
	assert.False(t, ok)
}

func TestAllModules_ReturnsCopy(t *testing.T) {
	a := AllModules()
	a[0] = "mutated"
	assert.Equal(t, ModuleDashboard, AllModules()[0])
}

func TestRoleConfig_Validate(t *testing.T) {
	ok := &RoleConfig{ID: "lead", Name: "Lead", Permissions: map[ModuleKey]Permission{ModuleTasks: {View: true}}}
	assert.NoError(t, ok.Validate())

	assert.Error(t, (&RoleConfig{Name: "x"}).Validate())
	assert.Error(t, (&RoleConfig{ID: "x"}).Validate())
	assert.Error(t, (&RoleConfig{ID: RoleAdmin, Name: "Admin"}).Validate())

	bad := &RoleConfig{ID: "lead", Name: "Lead", Permissions: map[ModuleKey]Permission{"taks": {View: true}}}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModule))
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "view", View.String())
	assert.Equal(t, "edit", Edit.String())
}
