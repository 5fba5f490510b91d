package local

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/smallbiznis/encore/internal/config"
)

const ProviderName = "local"

var errOutsideRoot = fmt.Errorf("attachment path escapes storage root")

// Provider writes attachments under a directory served at BaseURL.
type Provider struct {
	root    string
	baseURL string
}

type Factory struct{}

func (Factory) Provider() string { return ProviderName }

func (Factory) New(cfg config.AttachmentConfig) (domain.Provider, error) {
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, domain.ErrProviderDisabled
	}
	return New(cfg.LocalDir, cfg.LocalBaseURL)
}

func New(root, baseURL string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "/files"
	}
	return &Provider{root: abs, baseURL: baseURL}, nil
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Root() string { return p.root }

func (p *Provider) Store(ctx context.Context, file domain.File, folder string) (domain.Stored, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stored{}, err
	}
	key := objectKey(folder, file.Name)
	target, err := p.resolve(key)
	if err != nil {
		return domain.Stored{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.Stored{}, fmt.Errorf("create attachment dir: %w", err)
	}
	if err := os.WriteFile(target, file.Data, 0o644); err != nil {
		return domain.Stored{}, fmt.Errorf("write attachment: %w", err)
	}
	return domain.Stored{URL: p.baseURL + "/" + key, Provider: ProviderName}, nil
}

func (p *Provider) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.TrimPrefix(strings.TrimSpace(url), p.baseURL+"/")
	if key == url {
		return fmt.Errorf("attachment url %q not served by local provider", url)
	}
	target, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

func (p *Provider) resolve(key string) (string, error) {
	target := filepath.Join(p.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(p.root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", errOutsideRoot
	}
	return target, nil
}

// objectKey builds folder/<ulid>-<slug><ext> so names never collide.
func objectKey(folder, name string) string {
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(path.Base(name), path.Ext(name)))
	if base == "" {
		base = "file"
	}
	folder = slug.Make(folder)
	if folder == "" {
		folder = "misc"
	}
	return folder + "/" + ulid.Make().String() + "-" + base + ext
}
