package qtdoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/qtenum/internal/infra/cache"
	providerx "github.com/John-Robertt/qtenum/internal/provider"
)

func fixture(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", "qevent.html"))
	require.NoError(t, err)
	return b
}

func TestSplitRefAndPageURL(t *testing.T) {
	p := Provider{}

	u, err := p.PageURL("QtCore:qevent")
	require.NoError(t, err)
	assert.Equal(t, "https://doc.qt.io/qt-6/qevent.html", u)

	u, err = Provider{BaseURL: "http://mirror.test/qt-6/"}.PageURL("QtCore:QEvent.html")
	require.NoError(t, err)
	assert.Equal(t, "http://mirror.test/qt-6/qevent.html", u)

	u, err = p.PageURL("QtGui:https://doc.qt.io/qt-6/qpalette.html")
	require.NoError(t, err)
	assert.Equal(t, "https://doc.qt.io/qt-6/qpalette.html", u)

	for _, bad := range []string{"qevent", "QtCore:", ":qevent", "Qt-Core:qevent", "QtCore:../x"} {
		_, err := p.PageURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestParse_Fixture(t *testing.T) {
	members, err := Provider{}.Parse(context.Background(), "QtCore:qevent", fixture(t))
	require.NoError(t, err)

	got := make([]string, 0, len(members))
	for _, m := range members {
		got = append(got, m.Class.QualName()+"."+m.Name)
	}
	assert.Equal(t, []string{
		"QtCore.QEvent.Type.None_",
		"QtCore.QEvent.Type.Timer",
		"QtCore.QEvent.Type.FocusOut",
		"QtCore.QEvent.Policy.Accept",
		"QtCore.QEvent.Policy.Ignore",
	}, got)
}

func TestParse_NoEnums(t *testing.T) {
	_, err := Provider{}.Parse(context.Background(), "QtCore:x", []byte("<html><body><h3>nothing</h3></body></html>"))
	require.Error(t, err)
}

func TestFetchParse_CacheAndOffline(t *testing.T) {
	body := fixture(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/qt-6/qevent.html" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	reg, err := providerx.NewRegistry(Provider{BaseURL: srv.URL + "/qt-6"})
	require.NoError(t, err)
	store := cache.New(t.TempDir(), false)

	res, err := providerx.FetchParse(context.Background(), reg, "qtdoc", "QtCore:qevent", providerx.FetchOptions{Client: srv.Client(), Cache: store})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, srv.URL+"/qt-6/qevent.html", res.Source)
	assert.Len(t, res.Members, 5)

	// 第二次：命中缓存，离线也可用。
	ro := cache.New(store.Root, true)
	res, err = providerx.FetchParse(context.Background(), reg, "qtdoc", "QtCore:qevent", providerx.FetchOptions{Client: srv.Client(), Cache: ro, Offline: true})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, hits)

	// 离线 + 未缓存：fetch 阶段失败，不发请求。
	_, err = providerx.FetchParse(context.Background(), reg, "qtdoc", "QtGui:qpalette", providerx.FetchOptions{Client: srv.Client(), Cache: ro, Offline: true})
	var pe *providerx.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "fetch", pe.Stage)
	assert.ErrorIs(t, err, providerx.ErrOfflineMiss)
	assert.Equal(t, 1, hits)
}
