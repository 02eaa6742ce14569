package stubs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	providerx "github.com/John-Robertt/qtenum/internal/provider"
)

const qtcore = `import enum

class QEvent:
    class Type(enum.IntEnum):
        FocusIn = 0x8
        FocusOut = 0x9
`

func TestModuleName(t *testing.T) {
	assert.Equal(t, "QtCore", ModuleName(filepath.Join("PySide6", "QtCore.pyi")))
	assert.Equal(t, "QtGui", ModuleName("https://example.test/stubs/QtGui.pyi"))
	assert.Equal(t, "QtWidgets", ModuleName("https://example.test/QtWidgets/__init__.pyi?raw=1"))
}

func TestFetchParse_LocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "QtCore.pyi")
	require.NoError(t, os.WriteFile(p, []byte(qtcore), 0o644))

	reg, err := providerx.NewRegistry(Provider{})
	require.NoError(t, err)

	res, err := providerx.FetchParse(context.Background(), reg, "stubs", p, providerx.FetchOptions{Offline: true})
	require.NoError(t, err)
	assert.Equal(t, p, res.Source)
	assert.False(t, res.Cached)
	require.Len(t, res.Members, 2)
	assert.Equal(t, "QtCore.QEvent.Type", res.Members[0].Class.QualName())
	assert.Equal(t, "FocusIn", res.Members[0].Name)
}

func TestFetchParse_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/QtCore.pyi" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(qtcore))
	}))
	defer srv.Close()

	reg, err := providerx.NewRegistry(Provider{})
	require.NoError(t, err)

	res, err := providerx.FetchParse(context.Background(), reg, "stubs", srv.URL+"/QtCore.pyi", providerx.FetchOptions{Client: srv.Client()})
	require.NoError(t, err)
	require.Len(t, res.Members, 2)
	assert.Equal(t, "QtCore", res.Members[1].Class.Module)

	_, err = providerx.FetchParse(context.Background(), reg, "stubs", srv.URL+"/missing.pyi", providerx.FetchOptions{Client: srv.Client()})
	var he *providerx.HTTPStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
}
