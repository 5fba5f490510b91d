package cdn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/encore/internal/attachment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "budget-info", r.FormValue("folder"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "info.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/budget-info/info.pdf"})
	}))
	defer srv.Close()

	p := New(srv.URL, "secret", srv.Client())
	stored, err := p.Store(context.Background(), domain.File{
		Name:        "info.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	}, domain.FolderBudgetInfo)
	require.NoError(t, err)
	assert.Equal(t, domain.Stored{URL: "https://cdn.example.com/budget-info/info.pdf", Provider: ProviderName}, stored)
}

func TestStoreFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := New(srv.URL, "", srv.Client())
	_, err := p.Store(context.Background(), domain.File{Name: "a.png", Data: []byte("x")}, "bank-slips")
	assert.Error(t, err)
}

func TestDeleteTreatsNotFoundAsDone(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotURL = r.URL.Query().Get("url")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(srv.URL, "", srv.Client())
	require.NoError(t, p.Delete(context.Background(), "https://cdn.example.com/x.png"))
	assert.Equal(t, "https://cdn.example.com/x.png", gotURL)
}
