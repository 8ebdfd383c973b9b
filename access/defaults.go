package access

// DefaultRows is the built-in matrix. Visibility follows the dashboard's
// role menu; write access is granted where the role owns the workflow.
func DefaultRows() Rows {
	return Rows{
		RoleEmployee: {
			ModuleDashboard:  ReadOnly,
			ModuleLeave:      ReadWrite,
			ModuleTimesheets: ReadWrite,
		},
		RoleHRExecutive: {
			ModuleDashboard: ReadOnly,
			ModuleEmployees: ReadWrite,
			ModuleLeave:     ReadWrite,
		},
		RoleHRManager: {
			ModuleDashboard:  ReadOnly,
			ModuleEmployees:  ReadWrite,
			ModulePayDetails: ReadOnly,
			ModuleLeave:      ReadWrite,
			ModuleCompliance: ReadWrite,
		},
		RoleOpsExecutive: {
			ModuleDashboard:  ReadOnly,
			ModuleEmployees:  ReadOnly,
			ModuleTimesheets: ReadWrite,
		},
		RoleOpsManager: {
			ModuleDashboard:  ReadOnly,
			ModuleEmployees:  ReadOnly,
			ModuleTimesheets: ReadWrite,
			ModuleRoadmap:    ReadWrite,
		},
		RoleAppAdmin: {
			ModuleDashboard:  ReadOnly,
			ModuleEmployees:  ReadWrite,
			ModuleLeave:      ReadWrite,
			ModuleTimesheets: ReadWrite,
			ModuleCompliance: ReadOnly,
			ModuleAIConfig:   ReadWrite,
		},
		RoleSystemAdmin: {
			ModuleDashboard:  ReadWrite,
			ModuleEmployees:  ReadWrite,
			ModulePayDetails: ReadWrite,
			ModuleLeave:      ReadWrite,
			ModuleTimesheets: ReadWrite,
			ModuleCompliance: ReadWrite,
			ModuleRoadmap:    ReadWrite,
			ModuleSettings:   ReadWrite,
			ModuleAIConfig:   ReadWrite,
		},
	}
}

// DefaultTable builds DefaultRows.
func DefaultTable() *Table {
	return MustTable(DefaultRows())
}
