package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/adred-codev/swec/internal/state"
	"github.com/adred-codev/swec/internal/watcher"
)

func newTestServers(t *testing.T, historyLength int) (ro *httptest.Server, rw *httptest.Server, s *state.State) {
	t.Helper()
	s = state.New(historyLength, 16, nil)
	log := zerolog.Nop()
	ro = httptest.NewServer(ReadOnly("/api/v1", s, nil, log))
	rw = httptest.NewServer(ReadWrite("/api/v1", s, nil, log, 1000))
	t.Cleanup(func() {
		ro.Close()
		rw.Close()
	})
	return ro, rw, s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func putJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	return resp
}

func TestS1CreateUpdateHistoryBound(t *testing.T) {
	ro, rw, _ := newTestServers(t, 3)

	resp := postJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create spec: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	for i := 0; i < 5; i++ {
		resp := postJSON(t, rw.URL+"/api/v1/checkers/alpha/statuses", watcher.Status{IsUp: true, Message: "ok"})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add status %d: status = %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ro.URL + "/api/v1/checkers/alpha/statuses")
	if err != nil {
		t.Fatalf("get statuses: %v", err)
	}
	defer resp.Body.Close()
	var statuses []watcher.TimestampedStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		t.Fatalf("decode statuses: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("len(statuses) = %d, want 3", len(statuses))
	}
	for i, ts := range statuses {
		if !ts.Status.IsUp || ts.Status.Message != "ok" {
			t.Fatalf("statuses[%d] = %+v", i, ts)
		}
	}
	for i := 1; i < len(statuses); i++ {
		if statuses[i].Time.Before(statuses[i-1].Time) {
			t.Fatalf("timestamps not monotonically non-decreasing: %v", statuses)
		}
	}
}

func TestS2Conflict(t *testing.T) {
	_, rw, _ := newTestServers(t, 3)

	resp := postJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A"})
	resp.Body.Close()

	resp = postJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A'"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second create: status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	getResp, err := http.Get(rw.URL + "/api/v1/checkers/alpha/spec")
	if err != nil {
		t.Fatalf("get spec: %v", err)
	}
	defer getResp.Body.Close()
	var spec watcher.Spec
	json.NewDecoder(getResp.Body).Decode(&spec)
	if spec.Description != "A" {
		t.Fatalf("spec = %+v, want unchanged Description=A", spec)
	}
}

func TestS3UpdateSpecBroadcasts(t *testing.T) {
	_, rw, s := newTestServers(t, 3)
	resp := postJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A"})
	resp.Body.Close()

	sub, _, err := s.SubscribeChecker("alpha")
	if err != nil {
		t.Fatalf("SubscribeChecker: %v", err)
	}

	url := "http://x"
	resp = putJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A'", URL: &url})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update spec: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	msg, _, ok := sub.Recv()
	if !ok {
		t.Fatalf("expected UpdatedSpec broadcast")
	}
	spec, isUpdated := msg.IsUpdatedSpec()
	if !isUpdated || spec.Description != "A'" || spec.URL == nil || *spec.URL != "http://x" {
		t.Fatalf("unexpected broadcast: %+v", msg)
	}
}

func TestS5Delete(t *testing.T) {
	ro, rw, s := newTestServers(t, 3)
	resp := postJSON(t, rw.URL+"/api/v1/checkers/alpha/spec", watcher.Spec{Description: "A"})
	resp.Body.Close()

	checkerSub, _, err := s.SubscribeChecker("alpha")
	if err != nil {
		t.Fatalf("SubscribeChecker: %v", err)
	}
	listSub, _ := s.SubscribeList()

	req, _ := http.NewRequest(http.MethodDelete, rw.URL+"/api/v1/checkers/alpha", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	checkerMsg, _, ok := checkerSub.Recv()
	if !ok || !checkerMsg.IsCheckerDropped() {
		t.Fatalf("expected CheckerDropped, got ok=%v msg=%+v", ok, checkerMsg)
	}

	listMsg, _, ok := listSub.Recv()
	if !ok {
		t.Fatalf("expected a list message")
	}
	if name, isRemove := listMsg.IsRemove(); !isRemove || name != "alpha" {
		t.Fatalf("expected Remove(alpha), got %+v", listMsg)
	}

	getResp, err := http.Get(ro.URL + "/api/v1/checkers/alpha")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status = %d, want 404", getResp.StatusCode)
	}
}

func TestInfoReportsWritability(t *testing.T) {
	ro, rw, _ := newTestServers(t, 3)

	var roInfo, rwInfo infoResponse
	resp, _ := http.Get(ro.URL + "/api/v1/info")
	json.NewDecoder(resp.Body).Decode(&roInfo)
	resp.Body.Close()

	resp, _ = http.Get(rw.URL + "/api/v1/info")
	json.NewDecoder(resp.Body).Decode(&rwInfo)
	resp.Body.Close()

	if roInfo.Writable {
		t.Fatalf("read-only /info reported writable")
	}
	if !rwInfo.Writable {
		t.Fatalf("read-write /info reported not writable")
	}
}
