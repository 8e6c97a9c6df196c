package access

import (
	"errors"
	"fmt"
	"strings"
)

// ModuleKey identifies a permission-checkable area of the dashboard. Sub-keys
// such as ModuleProductsCatalog are independent of their parent: granting
// one never grants the other.
type ModuleKey string

const (
	ModuleDashboard        ModuleKey = "dashboard"
	ModuleTasks            ModuleKey = "tasks"
	ModuleOrders           ModuleKey = "orders"
	ModuleProduction       ModuleKey = "production"
	ModuleJobCycles        ModuleKey = "job_cycles"
	ModuleSetupMaps        ModuleKey = "setup_maps"
	ModuleProducts         ModuleKey = "products"
	ModuleProductsCatalog  ModuleKey = "products_catalog"
	ModuleProductsDrawings ModuleKey = "products_drawings"
	ModuleInventory        ModuleKey = "inventory"
	ModuleTools            ModuleKey = "tools"
	ModuleSchedule         ModuleKey = "schedule"
	ModuleAttendance       ModuleKey = "attendance"
	ModuleUsers            ModuleKey = "users"
	ModuleRoles            ModuleKey = "roles"
	ModuleNotifications    ModuleKey = "notifications"
)

// ErrUnknownModule is returned when a string does not name a ModuleKey.
var ErrUnknownModule = errors.New("access: unknown module")

var allModules = []ModuleKey{
	ModuleDashboard,
	ModuleTasks,
	ModuleOrders,
	ModuleProduction,
	ModuleJobCycles,
	ModuleSetupMaps,
	ModuleProducts,
	ModuleProductsCatalog,
	ModuleProductsDrawings,
	ModuleInventory,
	ModuleTools,
	ModuleSchedule,
	ModuleAttendance,
	ModuleUsers,
	ModuleRoles,
	ModuleNotifications,
}

// parents records the UI nesting of sub-keys. It is display metadata only and
// is never consulted by permission checks.
var parents = map[ModuleKey]ModuleKey{
	ModuleProductsCatalog:  ModuleProducts,
	ModuleProductsDrawings: ModuleProducts,
}

// AllModules returns every known module key in display order.
func AllModules() []ModuleKey {
	out := make([]ModuleKey, len(allModules))
	copy(out, allModules)
	return out
}

// ParseModuleKey validates a UI module identifier. Matching is exact after
// trimming surrounding whitespace.
func ParseModuleKey(s string) (ModuleKey, error) {
	k := ModuleKey(strings.TrimSpace(s))
	if k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModule, s)
}

// Valid reports whether k is one of the known module keys.
func (k ModuleKey) Valid() bool {
	for _, m := range allModules {
		if m == k {
			return true
		}
	}
	return false
}

// Parent returns the module k is nested under in the UI, if any.
func (k ModuleKey) Parent() (ModuleKey, bool) {
	p, ok := parents[k]
	return p, ok
}

func (k ModuleKey) String() string { return string(k) }
