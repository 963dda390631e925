package photos

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "weekly-intake/internal/common/http"
	"weekly-intake/internal/week"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1738108800123)

	got := ObjectPath(week.Bucket{Week: 5, Year: 2025}, now, "abc123", "png")

	assert.Equal(t, "2025/week-5/1738108800123_abc123.png", got)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpeg", Extension("Me.JPEG", "image/jpeg"))
	assert.Equal(t, "png", Extension("", "image/png"))
	assert.Equal(t, "jpg", Extension("photo", "image/jpg"))
	assert.Equal(t, "bin", Extension("", ""))
}

func TestUpload_Success(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Key":"application-photos/x"}`))
	}))
	defer srv.Close()

	u := NewUploader(apphttp.NewClient(time.Second), Config{
		BaseURL: srv.URL + "/",
		APIKey:  "secret",
		Bucket:  "application-photos",
	})
	u.random = func() string { return "tok" }

	now := time.UnixMilli(1700000000000)
	publicURL, err := u.Upload(context.Background(), week.Bucket{Week: 3, Year: 2025}, now, Photo{
		Data:        []byte("png-bytes"),
		FileName:    "me.png",
		ContentType: "image/png",
	})

	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/application-photos/2025/week-3/1700000000000_tok.png", gotPath)
	assert.Equal(t, "Bearer secret", gotHeaders.Get("Authorization"))
	assert.Equal(t, "false", gotHeaders.Get("x-upsert"))
	assert.Equal(t, "max-age=3600", gotHeaders.Get("cache-control"))
	assert.Equal(t, "image/png", gotHeaders.Get("Content-Type"))
	assert.Equal(t, []byte("png-bytes"), gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/application-photos/2025/week-3/1700000000000_tok.png", publicURL)
}

func TestUpload_ConflictIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Duplicate"}`))
	}))
	defer srv.Close()

	u := NewUploader(apphttp.NewClient(time.Second), Config{BaseURL: srv.URL, APIKey: "k", Bucket: "b"})

	_, err := u.Upload(context.Background(), week.Bucket{Week: 1, Year: 2025}, time.Now(), Photo{Data: []byte("x"), FileName: "a.gif"})

	var statusErr *apphttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
}
