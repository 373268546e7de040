package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/tabflow/internal/host"
	"github.com/lotas/tabflow/internal/types"
)

type fakeRequests struct {
	stats    types.StatsResponse
	statsErr error
	groupErr error
	grouped  int
}

func (f *fakeRequests) DomainStats(context.Context) (types.StatsResponse, error) {
	return f.stats, f.statsErr
}

func (f *fakeRequests) GroupByDomain(context.Context) error {
	f.grouped++
	return f.groupErr
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

// connectExtension starts a test server and dials it as the extension.
func connectExtension(t *testing.T, srv *Server, req Requests) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	ts := httptest.NewServer(srv.Router(req))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, "/"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	deadline := time.Now().Add(2 * time.Second)
	for !srv.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("server never registered the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ts, conn
}

// answer reads one command on the extension side and replies with reply,
// which gets the command's ID.
func answer(t *testing.T, conn *websocket.Conn, reply map[string]any) <-chan OutgoingMsg {
	t.Helper()
	got := make(chan OutgoingMsg, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, data, err := conn.Read(ctx)
		if err != nil {
			close(got)
			return
		}
		var cmd OutgoingMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			close(got)
			return
		}
		got <- cmd
		if reply == nil {
			return
		}
		reply["id"] = cmd.ID
		out, _ := json.Marshal(reply)
		conn.Write(ctx, websocket.MessageText, out)
	}()
	return got
}

func TestServerForwardsEvents(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg := `{"type": "tab-created", "tab": {"id": 42, "url": "https://example.com", "status": "complete"}}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-srv.Events():
		if ev.Kind != types.EventCreated || ev.TabID != 42 {
			t.Errorf("got %+v", ev)
		}
		if ev.Tab == nil || ev.Tab.URL != "https://example.com" {
			t.Errorf("tab = %+v", ev.Tab)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestQueryTabsRoundTrip(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)

	cmds := answer(t, conn, map[string]any{
		"ok": true,
		"tabs": []map[string]any{
			{"id": 1, "url": "https://a.example.com", "groupId": 3},
			{"id": 2, "url": "https://b.example.com"},
		},
	})

	group := 3
	tabs, err := srv.QueryTabs(context.Background(), host.TabQuery{CurrentWindow: true, GroupID: &group})
	if err != nil {
		t.Fatalf("QueryTabs: %v", err)
	}
	if len(tabs) != 2 {
		t.Fatalf("got %d tabs, want 2", len(tabs))
	}
	if tabs[1].GroupID != types.GroupNone {
		t.Errorf("tab 2 group = %d", tabs[1].GroupID)
	}

	cmd := <-cmds
	if cmd.Action != ActionQueryTabs || !cmd.CurrentWindow {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.GroupID == nil || *cmd.GroupID != 3 {
		t.Errorf("command groupId = %v", cmd.GroupID)
	}
	if cmd.ID == "" {
		t.Error("command has no ID")
	}
}

func TestGroupTabsNewGroupOmitsGroupID(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)

	cmds := answer(t, conn, map[string]any{"ok": true, "groupId": 77})

	id, err := srv.GroupTabs(context.Background(), []int{1, 2}, types.GroupNone)
	if err != nil {
		t.Fatalf("GroupTabs: %v", err)
	}
	if id != 77 {
		t.Errorf("group id = %d, want 77", id)
	}
	cmd := <-cmds
	if cmd.GroupID != nil {
		t.Errorf("new group command carried groupId %d", *cmd.GroupID)
	}
	if len(cmd.TabIDs) != 2 {
		t.Errorf("tabIds = %v", cmd.TabIDs)
	}
}

func TestGroupTabsMissingGroupID(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)
	answer(t, conn, map[string]any{"ok": true})

	if _, err := srv.GroupTabs(context.Background(), []int{1}, 5); err == nil {
		t.Error("expected error when response has no groupId")
	}
}

func TestUpdateGroupSendsFields(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)
	cmds := answer(t, conn, map[string]any{"ok": true})

	title := "EXAMPLE (2)"
	collapsed := false
	err := srv.UpdateGroup(context.Background(), 9, host.GroupUpdate{Title: &title, Collapsed: &collapsed})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	cmd := <-cmds
	if cmd.Action != ActionUpdateGroup || cmd.GroupID == nil || *cmd.GroupID != 9 {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Title == nil || *cmd.Title != title {
		t.Errorf("title = %v", cmd.Title)
	}
	if cmd.Color != nil {
		t.Errorf("color should be omitted, got %q", *cmd.Color)
	}
}

func TestCallHostError(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)
	answer(t, conn, map[string]any{"ok": false, "error": "No tab with id: 5"})

	_, err := srv.GetTab(context.Background(), 5)
	var herr *host.Error
	if !errors.As(err, &herr) {
		t.Fatalf("got %v, want *host.Error", err)
	}
	if herr.Action != ActionGetTab || herr.Message != "No tab with id: 5" {
		t.Errorf("host error = %+v", herr)
	}
}

func TestCallNotConnected(t *testing.T) {
	srv := New(0)
	_, err := srv.QueryGroups(context.Background())
	if !errors.Is(err, host.ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := New(0)
	srv.SetCommandTimeout(50 * time.Millisecond)
	_, conn := connectExtension(t, srv, nil)
	answer(t, conn, nil)

	_, err := srv.QueryGroups(context.Background())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("got %v, want timeout", err)
	}
}

func TestCallFailsOnDisconnect(t *testing.T) {
	srv := New(0)
	_, conn := connectExtension(t, srv, nil)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		conn.Read(ctx)
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	_, err := srv.QueryTabs(context.Background(), host.TabQuery{})
	if !errors.Is(err, host.ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

func TestPopupStats(t *testing.T) {
	req := &fakeRequests{stats: types.StatsResponse{
		Stats: map[string]*types.DomainStat{
			"example.com": {Count: 2, DisplayName: "EXAMPLE", Color: "#FF6B6B"},
		},
		TotalDomains: 1,
	}}
	ts := httptest.NewServer(New(0).Router(req))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, "/popup"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	out, _ := json.Marshal(PopupRequest{ID: "r1", Action: ActionGetDomainStats})
	if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var resp PopupResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "r1" {
		t.Errorf("id = %q", resp.ID)
	}
	if resp.TotalDomains == nil || *resp.TotalDomains != 1 {
		t.Errorf("totalDomains = %v", resp.TotalDomains)
	}
	if resp.Stats["example.com"] == nil || resp.Stats["example.com"].Count != 2 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestAnswerGroupFailure(t *testing.T) {
	req := &fakeRequests{groupErr: errors.New("boom")}
	resp := Answer(context.Background(), req, PopupRequest{Action: ActionGroupTabsByDomain})
	if resp.Success == nil || *resp.Success {
		t.Errorf("success = %v, want false", resp.Success)
	}
	if resp.Error != "boom" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestAnswerUnknownAction(t *testing.T) {
	resp := Answer(context.Background(), &fakeRequests{}, PopupRequest{Action: "dance"})
	if !strings.Contains(resp.Error, "unknown action") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestAPIGroup(t *testing.T) {
	req := &fakeRequests{}
	ts := httptest.NewServer(New(0).Router(req))
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/group", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var resp PopupResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success == nil || !*resp.Success {
		t.Errorf("success = %v", resp.Success)
	}
	if req.grouped != 1 {
		t.Errorf("GroupByDomain called %d times", req.grouped)
	}
}

func TestAPIStatsError(t *testing.T) {
	req := &fakeRequests{statsErr: host.ErrNotConnected}
	ts := httptest.NewServer(New(0).Router(req))
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", res.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(New(0).Router(nil))
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	var body map[string]bool
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["connected"] {
		t.Error("no extension connected yet")
	}
}

func TestAPINotMountedWithoutRequests(t *testing.T) {
	ts := httptest.NewServer(New(0).Router(nil))
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", res.StatusCode)
	}
}

func TestDispatchQueuesEventBursts(t *testing.T) {
	srv := New(0)
	t.Cleanup(srv.Close)

	const n = 100
	for i := 1; i <= n; i++ {
		srv.dispatch(IncomingMsg{Type: "tab-updated", TabID: i, Status: "complete"})
	}

	for i := 1; i <= n; i++ {
		select {
		case ev := <-srv.Events():
			if ev.TabID != i {
				t.Fatalf("event %d has tab %d, want arrival order", i, ev.TabID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered %d of %d events", i-1, n)
		}
	}
	if p := srv.events.pending(); p != 0 {
		t.Errorf("%d events still queued", p)
	}
}

func TestReplacedConnectionFailsPendingCalls(t *testing.T) {
	srv := New(0)
	srv.SetCommandTimeout(10 * time.Second)
	ts, first := connectExtension(t, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := srv.QueryGroups(context.Background())
		errc <- err
	}()
	if _, _, err := first.Read(ctx); err != nil {
		t.Fatalf("read command: %v", err)
	}

	second, _, err := websocket.Dial(ctx, wsURL(ts, "/"), nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.CloseNow()

	select {
	case err := <-errc:
		if !errors.Is(err, host.ErrNotConnected) {
			t.Errorf("got %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call on the replaced socket kept waiting")
	}
}

func TestPort(t *testing.T) {
	srv := New(19192)
	defer srv.Close()
	if got := srv.Port(); got != 19192 {
		t.Errorf("Port() = %d, want 19192", got)
	}
}
