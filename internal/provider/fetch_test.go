package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/qtenum/internal/domain"
)

type fakeProvider struct {
	fetches  int
	fetchErr error
	parseErr error
}

func (*fakeProvider) Name() string { return "Fake" }

func (*fakeProvider) Remote(ref string) bool { return IsRemote(ref) }

func (p *fakeProvider) Fetch(_ context.Context, ref string, _ *http.Client) ([]byte, string, error) {
	p.fetches++
	if p.fetchErr != nil {
		return nil, "", p.fetchErr
	}
	return []byte("Kind:" + ref), ref, nil
}

func (p *fakeProvider) Parse(_ context.Context, _ string, body []byte) ([]domain.Member, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return []domain.Member{{Name: "A", Class: domain.EnumClass{Module: "QtCore", Scope: "Qt", Name: string(body[:4])}}}, nil
}

type memCache struct {
	pages  map[string][]byte
	writes int
}

func (c *memCache) ReadPage(provider, ref string) ([]byte, bool, error) {
	b, ok := c.pages[provider+"|"+ref]
	return b, ok, nil
}

func (c *memCache) WritePage(provider, ref string, body []byte) error {
	if c.pages == nil {
		c.pages = map[string][]byte{}
	}
	c.pages[provider+"|"+ref] = body
	c.writes++
	return nil
}

const remoteRef = "https://example.test/QtCore.pyi"

func TestFetchParse_RemoteCachesAfterParse(t *testing.T) {
	p := &fakeProvider{}
	reg, err := NewRegistry(p)
	require.NoError(t, err)
	c := &memCache{}

	res, err := FetchParse(context.Background(), reg, " FAKE ", remoteRef, FetchOptions{Cache: c})
	require.NoError(t, err)
	assert.Equal(t, "fake", res.Provider)
	assert.Equal(t, remoteRef, res.Source)
	assert.False(t, res.Cached)
	require.Len(t, res.Members, 1)
	assert.Equal(t, 1, c.writes)

	res, err = FetchParse(context.Background(), reg, "fake", remoteRef, FetchOptions{Cache: c, Offline: true})
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Empty(t, res.Source)
	assert.Equal(t, 1, p.fetches)
	assert.Equal(t, 1, c.writes)
}

func TestFetchParse_LocalRefSkipsCache(t *testing.T) {
	p := &fakeProvider{}
	reg, err := NewRegistry(p)
	require.NoError(t, err)
	c := &memCache{}

	_, err = FetchParse(context.Background(), reg, "fake", "stubs/QtCore.pyi", FetchOptions{Cache: c, Offline: true})
	require.NoError(t, err)
	assert.Equal(t, 1, p.fetches)
	assert.Zero(t, c.writes)
}

func TestFetchParse_Errors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("offline miss", func(t *testing.T) {
		p := &fakeProvider{}
		reg, _ := NewRegistry(p)
		_, err := FetchParse(context.Background(), reg, "fake", remoteRef, FetchOptions{Cache: &memCache{}, Offline: true})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "fetch", pe.Stage)
		assert.ErrorIs(t, err, ErrOfflineMiss)
		assert.Zero(t, p.fetches)
	})

	t.Run("fetch", func(t *testing.T) {
		reg, _ := NewRegistry(&fakeProvider{fetchErr: boom})
		_, err := FetchParse(context.Background(), reg, "fake", remoteRef, FetchOptions{})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "fetch", pe.Stage)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("parse does not cache", func(t *testing.T) {
		reg, _ := NewRegistry(&fakeProvider{parseErr: boom})
		c := &memCache{}
		_, err := FetchParse(context.Background(), reg, "fake", remoteRef, FetchOptions{Cache: c})
		var pe *Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "parse", pe.Stage)
		assert.Zero(t, c.writes)
	})

	t.Run("unknown provider", func(t *testing.T) {
		reg, _ := NewRegistry(&fakeProvider{})
		_, err := FetchParse(context.Background(), reg, "nope", remoteRef, FetchOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fake")
	})

	t.Run("empty ref", func(t *testing.T) {
		reg, _ := NewRegistry(&fakeProvider{})
		_, err := FetchParse(context.Background(), reg, "fake", "  ", FetchOptions{})
		require.Error(t, err)
	})
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(&fakeProvider{}, &fakeProvider{})
	require.Error(t, err)
	_, err = NewRegistry(nil)
	require.Error(t, err)
}
