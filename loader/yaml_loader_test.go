package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inedumozey/morm/schema"
)

const sampleSchema = `
enums:
  - name: USER_ROLE
    values: [ADMIN, STUDENT]

tables:
  - name: users
    columns:
      - name: id
        type: uuid
        primary: true
        default: uuid()
      - name: role
        type: USER_ROLE
        default: ADMIN
      - name: age
        type: int
        check: "age >= 18"
    indexes: [role]

  - name: post
    columns:
      - name: id
        type: uuid
        primary: true
        default: uuid()
      - name: user_id
        type: uuid
        references:
          target: users.id
          relation: one-to-many
          onDelete: SET NULL
`

func writeSchema(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	decl, err := LoadFile(writeSchema(t, sampleSchema))
	require.NoError(t, err)

	require.Len(t, decl.Enums, 1)
	assert.Equal(t, schema.EnumDef{Name: "USER_ROLE", Values: []string{"ADMIN", "STUDENT"}}, decl.Enums[0])

	require.Len(t, decl.Models, 2)
	users := decl.Models[0]
	assert.Equal(t, "users", users.Table)
	assert.Equal(t, []string{"role"}, users.Indexes)
	require.Len(t, users.Columns, 3)
	assert.True(t, users.Columns[0].Primary)
	assert.Equal(t, "uuid()", users.Columns[0].Default)
	assert.Equal(t, "age >= 18", users.Columns[2].Check)

	post := decl.Models[1]
	ref := post.Columns[1].References
	require.NotNil(t, ref)
	assert.Equal(t, "users", ref.Table)
	assert.Equal(t, "id", ref.Column)
	assert.Equal(t, "one-to-many", ref.Relation)
	assert.Equal(t, "SET NULL", ref.OnDelete)
}

func TestLoadFileBadReference(t *testing.T) {
	_, err := LoadFile(writeSchema(t, `
tables:
  - name: post
    columns:
      - name: user_id
        type: uuid
        references:
          target: users
`))
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
