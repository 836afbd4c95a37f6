package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videogen-ai/videogen/app/models"
)

type captured struct {
	path string
	body map[string]interface{}
}

func newEngine(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestDispatchFullVideo(t *testing.T) {
	srv, got := newEngine(t, http.StatusOK)
	client := NewClient(srv.URL+"/", time.Second)

	err := client.Dispatch(context.Background(), &models.Project{
		ID: "p-1", Kind: models.ProjectKindFullVideo, Title: "Ocean", Theme: "Deep sea",
		DurationMinutes: 15, Language: "es", ChannelName: "Blue",
	})
	require.NoError(t, err)

	assert.Equal(t, "/webhook/create-video", got.path)
	assert.Equal(t, "p-1", got.body["project_id"])
	assert.Equal(t, "Deep sea", got.body["central_theme"])
	assert.Equal(t, float64(15), got.body["duration_minutes"])
	assert.Equal(t, "es", got.body["language"])
	assert.Equal(t, "Blue", got.body["channel_name"])
	_, hasVoice := got.body["voice_id"]
	assert.False(t, hasVoice)
}

func TestDispatchModules(t *testing.T) {
	cases := []struct {
		project models.Project
		path    string
		field   string
		want    interface{}
	}{
		{models.Project{ID: "i", Kind: models.ProjectKindImages, Theme: "cats", ImagesRequested: 20, Style: "anime"}, "/webhook/generate-images", "images_count", float64(20)},
		{models.Project{ID: "s", Kind: models.ProjectKindScript, Theme: "space", DurationMinutes: 10}, "/webhook/generate-script", "duration_minutes", float64(10)},
		{models.Project{ID: "v", Kind: models.ProjectKindVoice, InputText: "hola", VoiceID: "v1"}, "/webhook/generate-voice", "text", "hola"},
	}
	for _, tc := range cases {
		t.Run(string(tc.project.Kind), func(t *testing.T) {
			srv, got := newEngine(t, http.StatusOK)
			p := tc.project
			require.NoError(t, NewClient(srv.URL, time.Second).Dispatch(context.Background(), &p))
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, tc.want, got.body[tc.field])
			assert.Equal(t, p.ID, got.body["project_id"])
		})
	}
}

func TestDispatchFailures(t *testing.T) {
	srv, _ := newEngine(t, http.StatusInternalServerError)
	err := NewClient(srv.URL, time.Second).Dispatch(context.Background(), &models.Project{ID: "x", Kind: models.ProjectKindScript})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")

	err = NewClient(srv.URL, time.Second).Dispatch(context.Background(), &models.Project{ID: "x", Kind: "bogus"})
	assert.Error(t, err)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()
	err = NewClient(slow.URL, 20*time.Millisecond).Dispatch(context.Background(), &models.Project{ID: "x", Kind: models.ProjectKindScript})
	assert.Error(t, err)
}
