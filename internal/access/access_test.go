package access

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleAdmin, RoleComplianceOfficer, RoleEmployee, RoleManager}, table.Roles())

	for _, role := range table.Roles() {
		tools, err := table.Tools(role)
		require.NoError(t, err)
		require.Len(t, tools, 6, role)
		assert.Equal(t, "text-gen", tools[0].ToolID)
		assert.Equal(t, "translator", tools[5].ToolID)
	}
}

func TestCeiling(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	tests := []struct {
		role    Role
		tool    string
		ceiling detection.SensitivityLevel
		err     error
	}{
		{RoleEmployee, "text-gen", detection.LevelInternal, nil},
		{RoleEmployee, "image-gen", detection.LevelPublic, nil},
		{RoleEmployee, "code-assist", "", ErrToolDenied},
		{RoleEmployee, "analytics", "", ErrToolDenied},
		{RoleManager, "analytics", detection.LevelInternal, nil},
		{RoleManager, "summarizer", detection.LevelConfidential, nil},
		{RoleAdmin, "code-assist", detection.LevelRestricted, nil},
		{RoleComplianceOfficer, "image-gen", "", ErrToolDenied},
		{RoleComplianceOfficer, "analytics", detection.LevelRestricted, nil},
		{RoleAdmin, "video-gen", detection.LevelPublic, nil},
		{Role("contractor"), "text-gen", "", ErrUnknownRole},
	}

	for _, tc := range tests {
		t.Run(string(tc.role)+"/"+tc.tool, func(t *testing.T) {
			ceiling, err := table.Ceiling(tc.role, tc.tool)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.ceiling, ceiling)
		})
	}
}

func TestLookup(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	tool, found, err := table.Lookup(RoleManager, "translator")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Language Translator", tool.ToolName)

	_, found, err = table.Lookup(RoleManager, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPermissions(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.True(t, table.HasPermission(RoleComplianceOfficer, "export_reports"))
	assert.False(t, table.HasPermission(RoleEmployee, "export_reports"))
	assert.True(t, table.HasPermission(RoleAdmin, "export_reports"))
	assert.False(t, table.HasPermission(Role("ghost"), "use_ai_tools"))
	assert.Equal(t, []string{"use_ai_tools", "view_own_logs"}, table.Permissions(RoleEmployee))
}

func TestToolsReturnsCopy(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	tools, err := table.Tools(RoleEmployee)
	require.NoError(t, err)
	tools[0].Allowed = false

	ceiling, err := table.Ceiling(RoleEmployee, "text-gen")
	require.NoError(t, err)
	assert.Equal(t, detection.LevelInternal, ceiling)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"empty":        "roles: {}",
		"bad yaml":     "roles: [",
		"bad level":    "roles:\n  intern:\n    tools:\n      - {tool_id: text-gen, allowed: true, max_sensitivity_level: secret}\n",
		"missing id":   "roles:\n  intern:\n    tools:\n      - {allowed: true, max_sensitivity_level: public}\n",
		"duplicate id": "roles:\n  intern:\n    tools:\n      - {tool_id: a, max_sensitivity_level: public}\n      - {tool_id: a, max_sensitivity_level: public}\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
roles:
  intern:
    permissions: [use_ai_tools]
    tools:
      - {tool_id: text-gen, tool_name: Text Generation, allowed: true, max_sensitivity_level: public}
`), 0600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Role{"intern"}, table.Roles())

	ceiling, err := table.Ceiling("intern", "text-gen")
	require.NoError(t, err)
	assert.Equal(t, detection.LevelPublic, ceiling)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Len(t, def.Roles(), 4)
}
