package gen

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/qtenum/internal/enumtable"
	"github.com/John-Robertt/qtenum/internal/infra/cache"
)

const qtCoreStub = `import enum
from typing import Any

class Qt:
    class AlignmentFlag(enum.Flag):
        AlignLeft = 0x1
        AlignRight = 0x2

    class CheckState(enum.Enum):
        Unchecked = 0x0
        Checked = 0x2
`

const qtWidgetsStub = `from enum import IntEnum

class QMessageBox:
    class StandardButton(IntEnum):
        Yes = 0x4000
        No = 0x10000

class QDialogButtonBox:
    class StandardButton(IntEnum):
        Yes = 0x4000
        No = 0x10000
`

func writeStubs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "QtCore.pyi"), []byte(qtCoreStub), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "QtWidgets.pyi"), []byte(qtWidgetsStub), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a stub"), 0o644))
	return dir
}

func TestGenerate_StubDirectory(t *testing.T) {
	dir := writeStubs(t)
	out := filepath.Join(t.TempDir(), "tables", "qt6.toml")
	doc := filepath.Join(t.TempDir(), "conflicts.md")

	res, err := Generate(context.Background(), Options{
		Provider:     "stubs",
		Refs:         []string{dir},
		Out:          out,
		ConflictsOut: doc,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Refs)
	// 改名条目不计入枚举类。
	assert.Equal(t, 4, res.Classes)
	assert.Equal(t, 2, res.Conflicts)

	f, err := enumtable.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.Data, mustEncode(t, f))

	tbl, err := enumtable.New(f, nil)
	require.NoError(t, err)
	r, ok := tbl.Resolve("No")
	require.True(t, ok)
	assert.Equal(t, "QtWidgets.QDialogButtonBox.StandardButton", r.Member.Class.QualName())
	r, ok = tbl.Resolve("MidButton")
	require.True(t, ok)
	assert.Equal(t, "MiddleButton", r.Member.Target())

	md, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Contains(t, string(md), "* `Yes` → `QtWidgets.QDialogButtonBox.StandardButton`")
}

func TestGenerate_RefusesOverwriteWithoutForce(t *testing.T) {
	dir := writeStubs(t)
	out := filepath.Join(t.TempDir(), "qt6.toml")
	require.NoError(t, os.WriteFile(out, []byte("keep"), 0o644))

	_, err := Generate(context.Background(), Options{Provider: "stubs", Refs: []string{dir}, Out: out})
	require.ErrorIs(t, err, os.ErrExist)
	b, _ := os.ReadFile(out)
	assert.Equal(t, "keep", string(b))

	_, err = Generate(context.Background(), Options{Provider: "stubs", Refs: []string{dir}, Out: out, Force: true})
	require.NoError(t, err)
	b, _ = os.ReadFile(out)
	assert.True(t, strings.HasPrefix(string(b), "version = 1"))
}

func TestGenerate_NoOutReturnsData(t *testing.T) {
	dir := writeStubs(t)
	res, err := Generate(context.Background(), Options{Provider: "stubs", Refs: []string{filepath.Join(dir, "QtCore.pyi")}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refs)
	assert.Zero(t, res.Conflicts)
	assert.Contains(t, string(res.Data), `class = "QtCore.Qt.AlignmentFlag"`)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(context.Background(), Options{Provider: "nope", Refs: []string{"x"}})
	require.Error(t, err)

	_, err = Generate(context.Background(), Options{Provider: "stubs", Refs: []string{" "}})
	require.Error(t, err)

	_, err = Generate(context.Background(), Options{Provider: "stubs", Refs: []string{t.TempDir()}})
	require.Error(t, err)

	_, err = Generate(context.Background(), Options{Provider: "stubs", Refs: []string{filepath.Join(t.TempDir(), "QtCore.pyi")}})
	require.Error(t, err)
}

const qpaletteHTML = `<html><body>
<h3 class="fn" id="ColorRole-enum">enum QPalette::<span class="name">ColorRole</span></h3>
<div class="table"><table class="valuelist">
<tr><th>Constant</th><th>Value</th></tr>
<tr><td><code>QPalette::Window</code></td><td><code>10</code></td></tr>
<tr><td><code>QPalette::Shadow</code></td><td><code>11</code></td></tr>
</table></div>
</body></html>`

func TestGenerate_QtDocWithCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(qpaletteHTML))
	}))
	defer srv.Close()

	store := cache.New(t.TempDir(), false)
	opts := Options{
		Provider:     "qtdoc",
		Refs:         []string{"QtGui:qpalette"},
		Client:       srv.Client(),
		Cache:        store,
		QtDocBaseURL: srv.URL,
	}
	res, err := Generate(context.Background(), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Cached)
	assert.Contains(t, string(res.Data), `class = "QtGui.QPalette.ColorRole"`)

	opts.Offline = true
	opts.Cache = cache.New(store.Root, true)
	res, err = Generate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cached)
	assert.Equal(t, 1, hits)
}

func mustEncode(t *testing.T, f enumtable.File) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enumtable.Encode(&buf, f))
	return buf.Bytes()
}
