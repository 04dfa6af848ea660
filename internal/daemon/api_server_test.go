package daemon_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"demoflow/internal/api"
	"demoflow/internal/daemon"
	"demoflow/internal/playback"
	"demoflow/internal/services/backend"
	"demoflow/internal/testsupport"
)

type apiClient struct {
	t      *testing.T
	base   string
	token  string
	client *http.Client
}

func newAPIClient(t *testing.T, d *daemon.Daemon) *apiClient {
	t.Helper()
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	return &apiClient{t: t, base: srv.URL, client: srv.Client()}
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *apiClient) createSession() api.SessionView {
	c.t.Helper()
	var resp api.SessionResponse
	if status := c.do(http.MethodPost, "/api/sessions", nil, &resp); status != http.StatusCreated {
		c.t.Fatalf("create status = %d", status)
	}
	return resp.Session
}

func TestSessionLifecycle(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)

	view := c.createSession()
	if view.ID == "" {
		t.Fatal("expected session id")
	}
	if view.Workflow.Current != 0 || view.Workflow.Total != 10 {
		t.Fatalf("unexpected workflow: %+v", view.Workflow)
	}

	var list api.SessionListResponse
	c.do(http.MethodGet, "/api/sessions", nil, &list)
	if len(list.Sessions) != 1 || list.Sessions[0] != view.ID {
		t.Fatalf("unexpected list: %+v", list.Sessions)
	}

	var got api.SessionResponse
	if status := c.do(http.MethodGet, "/api/sessions/"+view.ID, nil, &got); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if got.Session.ID != view.ID {
		t.Fatalf("get returned %q", got.Session.ID)
	}

	if status := c.do(http.MethodDelete, "/api/sessions/"+view.ID, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status = %d", status)
	}
	var errResp api.ErrorResponse
	if status := c.do(http.MethodGet, "/api/sessions/"+view.ID, nil, &errResp); status != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", status)
	}
	if errResp.Error == "" {
		t.Fatal("expected error message")
	}
}

func TestGoToLockedStepIsRejected(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	var moved api.GoToResponse
	status := c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/goto", api.IndexRequest{Index: 3}, &moved)
	if status != http.StatusConflict {
		t.Fatalf("goto locked status = %d", status)
	}
	if moved.Moved || moved.Current != 0 {
		t.Fatalf("unexpected goto response: %+v", moved)
	}

	var view api.SessionResponse
	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/complete", api.IndexRequest{Index: 0}, &view)
	status = c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/goto", api.IndexRequest{Index: 3}, &moved)
	if status != http.StatusOK || !moved.Moved || moved.Current != 3 {
		t.Fatalf("goto after complete: status %d, %+v", status, moved)
	}

	status = c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/goto", api.IndexRequest{Index: 42}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("goto out of range status = %d", status)
	}
}

func TestWorkflowNextPreviousAndResetGroup(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	var resp api.SessionResponse
	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/next", nil, &resp)
	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/next", nil, &resp)
	if resp.Session.Workflow.Current != 2 {
		t.Fatalf("current after two next = %d", resp.Session.Workflow.Current)
	}
	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/previous", nil, &resp)
	if resp.Session.Workflow.Current != 1 {
		t.Fatalf("current after previous = %d", resp.Session.Workflow.Current)
	}

	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/complete", api.IndexRequest{Index: 2}, &resp)
	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/reset-group", api.GroupRequest{Group: 1}, &resp)
	if resp.Session.Workflow.Current != 1 {
		t.Fatalf("current after reset = %d", resp.Session.Workflow.Current)
	}
	for _, idx := range resp.Session.Workflow.Completed {
		if idx == 2 {
			t.Fatal("expected step 2 completion cleared")
		}
	}

	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/jump", nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown op status = %d", status)
	}
}

func TestUploadMarksStepDone(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	var resp api.SessionResponse
	upload := map[string]any{"name": "clip.mp4", "size": 1 << 20, "width": 1920, "height": 1080, "duration": 12.5}
	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/upstream/upload", upload, &resp); status != http.StatusOK {
		t.Fatalf("upload status = %d", status)
	}
	step, ok := resp.Session.Step(0)
	if !ok || !step.Completed {
		t.Fatalf("expected upload step completed: %+v", step)
	}

	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/upstream/upload", map[string]any{"bogus": 1}, nil); status != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", status)
	}
}

func TestPlaybackRequiresAllStreamsReady(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	var errResp api.ErrorResponse
	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/playback/play-pause", nil, &errResp); status != http.StatusConflict {
		t.Fatalf("play before ready status = %d", status)
	}

	for _, sid := range playback.StreamIDs() {
		if status := c.do(http.MethodPost, "/api/sessions/"+id+"/streams/"+string(sid)+"/ready", nil, nil); status != http.StatusOK {
			t.Fatalf("ready %s status = %d", sid, status)
		}
	}

	var resp api.SessionResponse
	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/playback/play-pause", nil, &resp); status != http.StatusOK {
		t.Fatalf("play status = %d", status)
	}
	if !resp.Session.Playback.Transport.Playing {
		t.Fatal("expected transport playing")
	}

	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/playback/skip", api.SkipRequest{Direction: "sideways"}, nil); status != http.StatusBadRequest {
		t.Fatalf("bad skip status = %d", status)
	}
	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/streams/vp9/ready", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("unknown stream status = %d", status)
	}

	c.do(http.MethodPost, "/api/sessions/"+id+"/playback/reset", nil, &resp)
	if resp.Session.Playback.Transport.Playing || resp.Session.Playback.Transport.AllReady {
		t.Fatalf("expected reset transport: %+v", resp.Session.Playback.Transport)
	}
}

func TestBackendRoutesWithoutClient(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	status := c.do(http.MethodPost, "/api/sessions/"+id+"/backend/compare", api.CompareRequest{Key: "k"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("compare without backend status = %d", status)
	}
}

func TestCompareStoresCodecMetrics(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": "success",
			"data": map[string]any{
				"psnr":         38.5,
				"encoded_path": req["codec"] + ".mp4",
				"file_size":    2048,
			},
		})
	}))
	t.Cleanup(upstream.Close)

	client := backend.New(upstream.URL, backend.WithHTTPClient(upstream.Client()))
	d, _ := newDaemon(t, testConfig(t), daemon.WithBackend(client))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	var resp api.SessionResponse
	status := c.do(http.MethodPost, "/api/sessions/"+id+"/backend/compare", api.CompareRequest{Key: "abc"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("compare status = %d", status)
	}
	step, ok := resp.Session.Step(6)
	if !ok || !step.Completed {
		t.Fatalf("expected compare step completed: %+v", step)
	}

	if status := c.do(http.MethodPost, "/api/sessions/"+id+"/backend/compare", api.CompareRequest{}, nil); status != http.StatusBadRequest {
		t.Fatalf("compare without key status = %d", status)
	}
}

func TestAuthTokenRequired(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t, testsupport.WithAPIToken("secret")))
	c := newAPIClient(t, d)

	if status := c.do(http.MethodGet, "/api/sessions", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", status)
	}
	c.token = "wrong"
	if status := c.do(http.MethodGet, "/api/sessions", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", status)
	}
	c.token = "secret"
	if status := c.do(http.MethodGet, "/api/sessions", nil, nil); status != http.StatusOK {
		t.Fatalf("valid token status = %d", status)
	}
}

func TestStatusAndMetricsEndpoints(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	c.createSession()

	var status api.DaemonStatus
	c.do(http.MethodGet, "/api/status", nil, &status)
	if status.Sessions != 1 || status.PID == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}

	resp, err := c.client.Get(c.base + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "demoflow_sessions_active 1") {
		t.Fatalf("metrics missing active sessions gauge:\n%s", body)
	}
}

func TestEventsStreamDeliversViews(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/api/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first api.SessionView
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial view: %v", err)
	}
	if first.ID != id || first.Workflow.Current != 0 {
		t.Fatalf("unexpected initial view: %+v", first.Workflow)
	}

	c.do(http.MethodPost, "/api/sessions/"+id+"/workflow/next", nil, nil)
	for {
		var view api.SessionView
		if err := conn.ReadJSON(&view); err != nil {
			t.Fatalf("read update: %v", err)
		}
		if view.Workflow.Current == 1 {
			break
		}
	}
}

func TestEventsStreamClosesWhenSessionDeleted(t *testing.T) {
	d, _ := newDaemon(t, testConfig(t))
	c := newAPIClient(t, d)
	id := c.createSession().ID

	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/api/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first api.SessionView
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial view: %v", err)
	}
	if status := c.do(http.MethodDelete, "/api/sessions/"+id, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status = %d", status)
	}

	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close frame, got %v", err)
	}
}
