package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

const jsonBundle = `{
  "id": "app-1",
  "name": "Demo",
  "pages": [{"id": "p1", "name": "Home", "path": "/"}],
  "components": [
    {
      "uuid": "root-uuid",
      "name": "Page1",
      "component_type": "page",
      "children_ids": ["label-uuid"]
    },
    {
      "uuid": "label-uuid",
      "name": "Label1",
      "component_type": "label",
      "input": {"text": {"type": "static", "value": "hello"}},
      "event": {"click": "SetVar('clicked', true)"}
    }
  ]
}`

const yamlBundle = `id: app-2
name: Second
components:
  - uuid: only-uuid
    name: Text1
    component_type: text
`

func writeBundle(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBundleJSON(t *testing.T) {
	path := writeBundle(t, t.TempDir(), "app.json", jsonBundle)

	app, err := LoadBundle(path)
	require.NoError(t, err)

	assert.Equal(t, "app-1", app.ID)
	require.Len(t, app.Components, 2)
	label := app.Components[1]
	assert.Equal(t, "Label1", label.Name)
	assert.Equal(t, canvasflow.InputStatic, label.Input["text"].Type)
	assert.Equal(t, "hello", label.Input["text"].Value)
	assert.Equal(t, "SetVar('clicked', true)", label.Event["click"])
	// Validation defaults the application id onto each component.
	assert.Equal(t, "app-1", label.ApplicationID)
}

func TestLoadBundleYAML(t *testing.T) {
	path := writeBundle(t, t.TempDir(), "app.yaml", yamlBundle)

	app, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, "app-2", app.ID)
	require.Len(t, app.Components, 1)
	assert.Equal(t, "Text1", app.Components[0].Name)
}

func TestLoadBundleRejectsUnknownExtension(t *testing.T) {
	path := writeBundle(t, t.TempDir(), "app.toml", "id = 'x'")
	_, err := LoadBundle(path)
	assert.Error(t, err)
}

func TestLoadDirSkipsIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "one.json", jsonBundle)
	writeBundle(t, dir, "two.yaml", yamlBundle)
	writeBundle(t, dir, "notes.txt", "not a bundle")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	apps, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestValidateRequiresApplicationID(t *testing.T) {
	err := Validate(&canvasflow.Application{})
	assert.ErrorContains(t, err, "application id")
}

func TestValidateRejectsDuplicateUUIDs(t *testing.T) {
	err := Validate(&canvasflow.Application{
		ID: "app-1",
		Components: []*canvasflow.Component{
			{UUID: "dup", Name: "A"},
			{UUID: "dup", Name: "B"},
		},
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestValidateRejectsDanglingChildReference(t *testing.T) {
	err := Validate(&canvasflow.Application{
		ID: "app-1",
		Components: []*canvasflow.Component{
			{UUID: "u1", Name: "A", ChildrenIDs: []string{"ghost"}},
		},
	})
	assert.ErrorContains(t, err, "unknown child")
}

func TestValidateRejectsForeignComponent(t *testing.T) {
	err := Validate(&canvasflow.Application{
		ID: "app-1",
		Components: []*canvasflow.Component{
			{UUID: "u1", Name: "A", ApplicationID: "other-app"},
		},
	})
	assert.ErrorContains(t, err, "belongs to application")
}
