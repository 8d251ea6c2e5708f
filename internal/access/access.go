// Package access holds the role to AI tool table that supplies each user's sensitivity ceiling.
package access

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/raaihank/ai-shield/internal/detection"
	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultRoles []byte

// Role is a user's organisational role
type Role string

const (
	RoleEmployee          Role = "employee"
	RoleManager           Role = "manager"
	RoleAdmin             Role = "admin"
	RoleComplianceOfficer Role = "compliance_officer"
)

// PermissionAll grants every permission
const PermissionAll = "all"

var (
	// ErrUnknownRole is returned for roles missing from the table
	ErrUnknownRole = errors.New("unknown role")
	// ErrToolDenied is returned when a role may not use a tool at all
	ErrToolDenied = errors.New("tool not allowed for role")
)

// ToolAccess is one role's capability record for one tool
type ToolAccess struct {
	ToolID              string                     `yaml:"tool_id" json:"toolId"`
	ToolName            string                     `yaml:"tool_name" json:"toolName"`
	Allowed             bool                       `yaml:"allowed" json:"allowed"`
	MaxSensitivityLevel detection.SensitivityLevel `yaml:"max_sensitivity_level" json:"maxSensitivityLevel"`
}

// RoleAccess is everything a role may do
type RoleAccess struct {
	Permissions []string     `yaml:"permissions" json:"permissions"`
	Tools       []ToolAccess `yaml:"tools" json:"tools"`
}

type document struct {
	Roles map[Role]RoleAccess `yaml:"roles"`
}

// Table maps roles to their ordered tool records. It is read-only once built.
type Table struct {
	roles map[Role]RoleAccess
}

// Default returns the built-in table
func Default() (*Table, error) {
	return Parse(defaultRoles)
}

// Load reads a table from path, or returns the built-in table when path is empty
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read access table: %w", err)
	}

	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse decodes and validates a YAML access table
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse access table: %w", err)
	}

	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("access table defines no roles")
	}

	for role, ra := range doc.Roles {
		seen := make(map[string]bool, len(ra.Tools))
		for _, tool := range ra.Tools {
			if tool.ToolID == "" {
				return nil, fmt.Errorf("role %s: tool without tool_id", role)
			}
			if seen[tool.ToolID] {
				return nil, fmt.Errorf("role %s: duplicate tool %s", role, tool.ToolID)
			}
			seen[tool.ToolID] = true

			if !tool.MaxSensitivityLevel.Valid() {
				return nil, fmt.Errorf("role %s tool %s: %w: %q",
					role, tool.ToolID, detection.ErrUnknownLevel, tool.MaxSensitivityLevel)
			}
		}
	}

	return &Table{roles: doc.Roles}, nil
}

// Roles returns the table's roles in name order
func (t *Table) Roles() []Role {
	roles := make([]Role, 0, len(t.roles))
	for r := range t.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Tools returns a copy of the ordered tool records for role
func (t *Table) Tools(role Role) ([]ToolAccess, error) {
	ra, ok := t.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	tools := make([]ToolAccess, len(ra.Tools))
	copy(tools, ra.Tools)
	return tools, nil
}

// Lookup finds the record for toolID under role. The bool is false when the role has no entry for the tool.
func (t *Table) Lookup(role Role, toolID string) (ToolAccess, bool, error) {
	ra, ok := t.roles[role]
	if !ok {
		return ToolAccess{}, false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	for _, tool := range ra.Tools {
		if tool.ToolID == toolID {
			return tool, true, nil
		}
	}
	return ToolAccess{}, false, nil
}

// Ceiling returns the highest tier role may submit to toolID. A tool with no entry
// for the role gets public; a tool the role may not use returns ErrToolDenied.
func (t *Table) Ceiling(role Role, toolID string) (detection.SensitivityLevel, error) {
	tool, found, err := t.Lookup(role, toolID)
	if err != nil {
		return "", err
	}
	if !found {
		return detection.LevelPublic, nil
	}
	if !tool.Allowed {
		return "", fmt.Errorf("%w: %s cannot use %s", ErrToolDenied, role, toolID)
	}
	return tool.MaxSensitivityLevel, nil
}

// Permissions returns the permission names granted to role
func (t *Table) Permissions(role Role) []string {
	perms := t.roles[role].Permissions
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether role holds perm, directly or through "all"
func (t *Table) HasPermission(role Role, perm string) bool {
	for _, p := range t.roles[role].Permissions {
		if p == perm || p == PermissionAll {
			return true
		}
	}
	return false
}
