package target

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/notify"
)

func fixedDir(dir string) WorkingDir {
	return func() (string, error) { return dir, nil }
}

func TestResolve_Directory(t *testing.T) {
	dir := t.TempDir()

	tgt, err := Resolve(dir, nil)
	require.NoError(t, err)

	assert.True(t, tgt.IsDirectory)
	assert.True(t, tgt.Subtree())
	assert.Equal(t, filepath.Clean(dir), tgt.AbsolutePath)
	assert.Equal(t, tgt.AbsolutePath, tgt.WatchedDirectory)
	assert.Empty(t, tgt.FileName)
}

func TestResolve_RelativeFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	file := filepath.Join(dir, "src", "x.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tgt, err := Resolve(filepath.Join("src", "..", "src", "x.txt"), fixedDir(dir))
	require.NoError(t, err)

	assert.False(t, tgt.IsDirectory)
	assert.False(t, tgt.Subtree())
	assert.Equal(t, file, tgt.AbsolutePath)
	assert.Equal(t, filepath.Join(dir, "src"), tgt.WatchedDirectory)
	assert.Equal(t, "x.txt", tgt.FileName)
}

func TestResolve_WatchedDirectoryIsAncestorOrSelf(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	file := filepath.Join(nested, "c.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, input := range []string{dir, nested, file, "a", "a/b", "a/b/c.txt", "./a/../a/b/c.txt"} {
		t.Run(input, func(t *testing.T) {
			tgt, err := Resolve(input, fixedDir(dir))
			require.NoError(t, err)

			info, err := os.Stat(tgt.WatchedDirectory)
			require.NoError(t, err)
			assert.True(t, info.IsDir())

			rel, err := filepath.Rel(tgt.WatchedDirectory, tgt.AbsolutePath)
			require.NoError(t, err)
			assert.False(t, strings.HasPrefix(rel, ".."), "watched dir must contain the target")
		})
	}
}

func TestResolve_Failures(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		input string
		wd    WorkingDir
	}{
		{"empty", "", fixedDir(dir)},
		{"missing", "does-not-exist.txt", fixedDir(dir)},
		{"cwd failure", "x.txt", func() (string, error) { return "", os.ErrPermission }},
		{"too long", strings.Repeat("a/", MaxPathLength/2), fixedDir(dir)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.input, tt.wd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrPathResolution))
			assert.Equal(t, 3, errors.ExitCode(err))
		})
	}
}

func TestTarget_LogValue(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	log.Info("watching", "target", Target{AbsolutePath: "/srv/x.txt", WatchedDirectory: "/srv", FileName: "x.txt"})

	assert.Contains(t, buf.String(), "target.path=/srv/x.txt")
	assert.Contains(t, buf.String(), "target.kind=file")
	assert.Contains(t, buf.String(), "target.dir=/srv")
}

func written(name string) notify.Record {
	return notify.Record{Name: name, Mask: notify.MaskCloseWrite}
}

func TestMatches_File(t *testing.T) {
	tgt := Target{AbsolutePath: "/d/x.txt", WatchedDirectory: "/d", FileName: "x.txt"}

	tests := []struct {
		name string
		rec  notify.Record
		want bool
	}{
		{"exact", written("x.txt"), true},
		{"other file", written("y.txt"), false},
		{"case differs", written("X.txt"), false},
		{"one byte differs", written("x.txT"), false},
		{"prefix", written("x.tx"), false},
		{"longer", written("x.txt~"), false},
		{"nested same base", written("sub/x.txt"), false},
		{"not a write", notify.Record{Name: "x.txt", Mask: notify.MaskCreate}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tgt.Matches(tt.rec))
		})
	}
}

func TestMatches_Directory(t *testing.T) {
	tgt := Target{AbsolutePath: "/d", WatchedDirectory: "/d", IsDirectory: true}

	assert.True(t, tgt.Matches(written("a.txt")))
	assert.True(t, tgt.Matches(written("sub/b.txt")))
	assert.False(t, tgt.Matches(notify.Record{Name: "sub", Mask: notify.MaskCreate | notify.MaskIsDir}))
}

func TestMatchesOverflow(t *testing.T) {
	assert.True(t, Target{IsDirectory: true}.MatchesOverflow())
	assert.True(t, Target{FileName: "x.txt"}.MatchesOverflow())
}
