package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeRules(t, `# sync rules
+ *.conf
- *.swp

- .cache/
Thumbs.db
`)

	c := NewChain()
	require.NoError(t, c.LoadFile(path))

	require.Len(t, c.rules, 4)
	assert.True(t, c.rules[0].Include)
	assert.False(t, c.rules[1].Include)
	assert.False(t, c.rules[3].Include)

	assert.True(t, c.Match("etc/app.conf", false, 1))
	assert.False(t, c.Match("notes.txt.swp", false, 1))
	assert.False(t, c.Match("home/.cache", true, 0))
	assert.False(t, c.Match("pics/Thumbs.db", false, 1))
	assert.True(t, c.Match("pics/cat.jpg", false, 1))
}

func TestLoadFileOnlyComments(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.LoadFile(writeRules(t, "# nothing\n\n   \n")))
	assert.True(t, c.Empty())
}

func TestLoadFileMissing(t *testing.T) {
	assert.Error(t, NewChain().LoadFile(filepath.Join(t.TempDir(), "none")))
}

func TestLoadFileBadPatternReportsLine(t *testing.T) {
	err := NewChain().LoadFile(writeRules(t, "- ok\n- [broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
