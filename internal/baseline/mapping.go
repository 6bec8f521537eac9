package baseline

import (
	"fmt"
	"strings"

	"partrecon/internal/config"
)

// FieldMap maps one legacy export field onto a manifest field.
type FieldMap struct {
	Source  string
	Target  string
	Numeric bool
}

// Legacy export field names.
const (
	fieldBOMParent = "PS-PARENT-KEY"
	fieldWorkCtr   = "RT-WC-KEY"
	fieldOpNum     = "RT-OP-NUM"
	fieldSetup     = "RT-SETUP"
	fieldRun       = "RT-RUN"
	fieldNoteOp    = "RN-OP-NUM"
	fieldNoteText  = "RN-TEXT"
)

// ItemMasterFields maps item master columns.
var ItemMasterFields = []FieldMap{
	{Source: "IM-DESCR", Target: "description"},
	{Source: "IM-TYPE", Target: "partType"},
	{Source: "IM-WEIGHT", Target: "weight", Numeric: true},
	{Source: "IM-COST", Target: "standardCost", Numeric: true},
}

// MaterialFields maps material relationship columns.
var MaterialFields = []FieldMap{
	{Source: "PS-SUBORD-KEY", Target: "material"},
	{Source: "PS-QTY-P", Target: "rawWeight", Numeric: true},
	{Source: "PS-DIM-1", Target: "blankLength", Numeric: true},
	{Source: "PS-DIM-2", Target: "blankWidth", Numeric: true},
}

// BOMFields maps bill-of-materials columns. Quantities of a part used by
// several assemblies are summed.
var BOMFields = []FieldMap{
	{Source: "PS-QTY-P", Target: "bomQuantity", Numeric: true},
}

// hoursPerUnit converts a legacy routing time unit to hours.
func hoursPerUnit(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", config.UnitMinutes:
		return 1.0 / 60.0, nil
	case config.UnitSeconds:
		return 1.0 / 3600.0, nil
	case config.UnitHours:
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown routing time unit %q", unit)
	}
}
