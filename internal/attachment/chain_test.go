package attachment

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name    string
	err     error
	calls   int
	deleted []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Store(_ context.Context, file domain.File, folder string) (domain.Stored, error) {
	f.calls++
	if f.err != nil {
		return domain.Stored{}, f.err
	}
	return domain.Stored{URL: "https://" + f.name + "/" + folder + "/" + file.Name, Provider: f.name}, nil
}

func (f *fakeProvider) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

var slip = domain.File{Name: "slip.png", ContentType: "image/png", Data: []byte("x")}

func TestChainFirstProviderWins(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	chain := NewChain(zap.NewNop(), nil, primary, backup)

	stored, err := chain.Store(context.Background(), slip, domain.FolderBankSlips)
	require.NoError(t, err)
	assert.Equal(t, "primary", stored.Provider)
	assert.Equal(t, 0, backup.calls)
}

func TestChainFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("bucket offline")}
	backup := &fakeProvider{name: "backup"}
	chain := NewChain(zap.NewNop(), nil, primary, backup)

	stored, err := chain.Store(context.Background(), slip, domain.FolderBankSlips)
	require.NoError(t, err)
	assert.Equal(t, "backup", stored.Provider)
	assert.Equal(t, "https://backup/bank-slips/slip.png", stored.URL)
	assert.Equal(t, 1, primary.calls)
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(zap.NewNop(), nil,
		&fakeProvider{name: "a", err: errors.New("down")},
		&fakeProvider{name: "b", err: errors.New("quota")},
	)

	_, err := chain.Store(context.Background(), slip, domain.FolderBankSlips)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "down")
	assert.Contains(t, err.Error(), "quota")
}

func TestChainRejectsEmptyFile(t *testing.T) {
	chain := NewChain(zap.NewNop(), nil, &fakeProvider{name: "a"})
	_, err := chain.Store(context.Background(), domain.File{Name: "x.png"}, domain.FolderBankSlips)
	assert.ErrorIs(t, err, domain.ErrEmptyFile)
}

func TestChainDeleteRoutesByProvider(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	chain := NewChain(zap.NewNop(), nil, a, b)

	require.NoError(t, chain.Delete(context.Background(), domain.Stored{URL: "u1", Provider: "B"}))
	assert.Empty(t, a.deleted)
	assert.Equal(t, []string{"u1"}, b.deleted)

	err := chain.Delete(context.Background(), domain.Stored{URL: "u2", Provider: "gone"})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestRegistryBuildSkipsDisabled(t *testing.T) {
	registry := NewDefaultRegistry()
	cfg := config.AttachmentConfig{LocalDir: t.TempDir(), LocalBaseURL: "/files"}

	providers, skipped, err := registry.Build([]string{"local", "cdn"}, cfg)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "local", providers[0].Name())
	assert.Equal(t, []string{"cdn"}, skipped)

	_, _, err = registry.Build([]string{"s3"}, cfg)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, _, err = registry.Build([]string{"cdn"}, cfg)
	assert.ErrorIs(t, err, domain.ErrNoProviders)
}
