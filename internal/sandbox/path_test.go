// File: internal/sandbox/path_test.go
package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sandboxDir returns a canonical temp dir so expected paths compare equal
// to Confine's symlink-resolved output.
func sandboxDir(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestConfine(t *testing.T) {
	root := sandboxDir(t)

	t.Run("relative path stays inside root", func(t *testing.T) {
		got, err := Confine(root, "shots/login.png")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "shots", "login.png"), got)
	})

	t.Run("dot segments are normalized", func(t *testing.T) {
		got, err := Confine(root, "a/./b/../c.json")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "a", "c.json"), got)
	})

	t.Run("traversal out of root is rejected", func(t *testing.T) {
		_, err := Confine(root, "../../etc/passwd")
		var escErr *PathEscapeError
		require.ErrorAs(t, err, &escErr)
		assert.Equal(t, "../../etc/passwd", escErr.Path)
	})

	t.Run("absolute path outside root is rejected", func(t *testing.T) {
		_, err := Confine(root, "/etc/passwd")
		var escErr *PathEscapeError
		assert.ErrorAs(t, err, &escErr)
	})

	t.Run("absolute path inside root is accepted", func(t *testing.T) {
		inside := filepath.Join(root, "data", "state.json")
		got, err := Confine(root, inside)
		require.NoError(t, err)
		assert.Equal(t, inside, got)
	})

	t.Run("sneaky prefix sibling is rejected", func(t *testing.T) {
		// /tmp/xyz-evil must not pass a check rooted at /tmp/xyz.
		_, err := Confine(root, root+"-evil/file.txt")
		var escErr *PathEscapeError
		assert.ErrorAs(t, err, &escErr)
	})

	t.Run("symlink pointing outside root is rejected", func(t *testing.T) {
		outside := sandboxDir(t)
		link := filepath.Join(root, "escape")
		require.NoError(t, os.Symlink(outside, link))

		_, err := Confine(root, "escape/creds.txt")
		var escErr *PathEscapeError
		assert.ErrorAs(t, err, &escErr)
	})

	t.Run("empty inputs are rejected", func(t *testing.T) {
		_, err := Confine("", "file.txt")
		assert.Error(t, err)

		_, err = Confine(root, "")
		assert.Error(t, err)
	})

	t.Run("relative root is rejected", func(t *testing.T) {
		_, err := Confine("relative/root", "file.txt")
		assert.Error(t, err)
		assert.False(t, errors.As(err, new(*PathEscapeError)))
	})
}

func TestConfineForWrite(t *testing.T) {
	root := sandboxDir(t)

	path, err := ConfineForWrite(root, "nested/dir/out.png")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Dir(path))

	_, err = ConfineForWrite(root, "../out.png")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "screenshot.png", "screenshot.png"},
		{"path separators replaced", "a/b\\c.png", "a_b_c.png"},
		{"spaces and symbols replaced", "my file (1).png", "my_file__1_.png"},
		{"leading dots trimmed", "..hidden", "hidden"},
		{"empty becomes placeholder", "", "unnamed"},
		{"only symbols becomes placeholder", "///", "unnamed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}

	t.Run("long names are truncated", func(t *testing.T) {
		long := ""
		for range 300 {
			long += "a"
		}
		assert.Len(t, SanitizeFilename(long), 128)
	})
}
