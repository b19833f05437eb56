package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDrive is an in-memory Drive v3 API covering the calls the client makes:
// file search, folder create, multipart upload, and metadata patch.
type fakeDrive struct {
	mu            sync.Mutex
	folders       map[string]string // name -> id
	nextID        int
	creates       int
	uploads       int
	patches       []string
	rejectAuth    bool
	failPatch     bool
	lastUploadCT  string
	lastMediaBody []byte
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{folders: map[string]string{}}
}

func (f *fakeDrive) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.rejectAuth || r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/files":
			f.handleSearch(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/files" && r.URL.Query().Get("uploadType") == "multipart":
			f.handleUpload(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/files":
			f.handleCreateFolder(w, r)
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/files/"):
			f.handlePatch(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeDrive) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	type file struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var files []file
	for name, id := range f.folders {
		if strings.Contains(q, "name='"+name+"'") {
			files = append(files, file{ID: id, Name: name})
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": files})
}

func (f *fakeDrive) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.nextID++
	f.creates++
	id := fmt.Sprintf("folder-%d", f.nextID)
	f.folders[req.Name] = id
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": req.Name})
}

func (f *fakeDrive) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.uploads++
	f.lastUploadCT = r.Header.Get("Content-Type")
	body, _ := io.ReadAll(r.Body)
	f.lastMediaBody = body
	f.nextID++
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":          fmt.Sprintf("file-%d", f.nextID),
		"name":        "upload",
		"webViewLink": fmt.Sprintf("https://drive.example/file-%d", f.nextID),
	})
}

func (f *fakeDrive) handlePatch(w http.ResponseWriter, r *http.Request) {
	if f.failPatch {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.patches = append(f.patches, req.Description)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": strings.TrimPrefix(r.URL.Path, "/files/")})
}

func newTestClient(t *testing.T, fake *fakeDrive) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	c := NewClient("GaunerAudio", nil)
	c.APIBaseURL = srv.URL
	c.UploadBaseURL = srv.URL
	return c
}

func TestFolderName(t *testing.T) {
	c := NewClient("GaunerAudio", nil)
	require.Equal(t, "GaunerAudio_user42", c.FolderName("user42"))
}

func TestEnsureFolderCreatesOnce(t *testing.T) {
	fake := newFakeDrive()
	c := newTestClient(t, fake)

	first, err := c.EnsureFolder(context.Background(), "good-token", "user42")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.Equal(t, 1, fake.creates)

	second, err := c.EnsureFolder(context.Background(), "good-token", "user42")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fake.creates, "existing folder must be reused, not recreated")
}

func TestEnsureFolderAuthRejected(t *testing.T) {
	fake := newFakeDrive()
	fake.rejectAuth = true
	c := newTestClient(t, fake)

	_, err := c.EnsureFolder(context.Background(), "bad-token", "user42")
	require.ErrorIs(t, err, ErrAuthRejected)
}

func TestUploadStoresFileInUserFolder(t *testing.T) {
	fake := newFakeDrive()
	c := newTestClient(t, fake)
	audio := []byte{0x49, 0x44, 0x33, 0x01, 0x02}

	rec, err := c.Upload(context.Background(), "good-token", "user42", "narration.mp3", audio, `{"videoId":"dQw4w9WgXcQ"}`)
	require.NoError(t, err)
	require.NotEmpty(t, rec.FileID)
	require.NotEmpty(t, rec.FileURL)
	require.Equal(t, fake.folders["GaunerAudio_user42"], rec.FolderID)
	require.False(t, rec.UploadedAt.IsZero())

	require.Equal(t, 1, fake.uploads)
	require.Contains(t, fake.lastUploadCT, "multipart/related")
	require.Contains(t, string(fake.lastMediaBody), `"name":"narration.mp3"`)
	require.Contains(t, string(fake.lastMediaBody), string(audio))

	require.Len(t, fake.patches, 1)
	require.Equal(t, `{"videoId":"dQw4w9WgXcQ"}`, fake.patches[0])
}

func TestUploadReusesFolderAcrossUploads(t *testing.T) {
	fake := newFakeDrive()
	c := newTestClient(t, fake)

	first, err := c.Upload(context.Background(), "good-token", "user42", "a.mp3", []byte("aaa"), "")
	require.NoError(t, err)
	second, err := c.Upload(context.Background(), "good-token", "user42", "b.mp3", []byte("bbb"), "")
	require.NoError(t, err)

	require.Equal(t, first.FolderID, second.FolderID)
	require.Equal(t, 1, fake.creates)
	require.Equal(t, 2, fake.uploads)
}

func TestUploadSucceedsWhenMetadataPatchFails(t *testing.T) {
	fake := newFakeDrive()
	fake.failPatch = true
	c := newTestClient(t, fake)

	rec, err := c.Upload(context.Background(), "good-token", "user42", "a.mp3", []byte("aaa"), "meta")
	require.NoError(t, err)
	require.NotEmpty(t, rec.FileID)
}

func TestUploadAuthRejected(t *testing.T) {
	fake := newFakeDrive()
	c := newTestClient(t, fake)

	_, err := c.Upload(context.Background(), "expired", "user42", "a.mp3", []byte("aaa"), "")
	require.ErrorIs(t, err, ErrAuthRejected)
}
