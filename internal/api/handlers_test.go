package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// doJSON runs one request against the router and decodes the JSON body.
func doJSON(t *testing.T, srv *Server, method, path string, body string, wantStatus int) map[string]interface{} {
	t.Helper()

	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != wantStatus {
		t.Fatalf("%s %s status = %d, want %d (body: %s)", method, path, w.Code, wantStatus, w.Body.String())
	}

	resp := map[string]interface{}{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp
}

// upload posts one multipart file and returns the created item's ID.
func upload(t *testing.T, srv *Server, user, name, tags string, data []byte) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if tags != "" {
		if err := mw.WriteField("tags", tags); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/users/"+user+"/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	id, _ := resp["item_id"].(string)
	if id == "" {
		t.Fatalf("upload response missing item_id: %v", resp)
	}
	return id
}

func TestUploadListGetDeleteFlow(t *testing.T) {
	srv, _ := newTestServer(t, "")

	id := upload(t, srv, "alice", "report.pdf", "finance, q1", []byte("pdf bytes"))

	// List shows the new item.
	list := doJSON(t, srv, "GET", "/api/v1/users/alice/items", "", http.StatusOK)
	if int(list["total"].(float64)) != 1 {
		t.Errorf("total = %v, want 1", list["total"])
	}
	items := list["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	row := items[0].(map[string]interface{})
	if row["original_name"] != "report.pdf" || row["kind"] != "pdf" {
		t.Errorf("row = %v", row)
	}

	// Detail carries the stored path and parsed tags.
	detail := doJSON(t, srv, "GET", "/api/v1/users/alice/items/"+id, "", http.StatusOK)
	if detail["stored_rel"] == "" {
		t.Error("detail missing stored_rel")
	}
	tags := detail["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "finance" {
		t.Errorf("tags = %v", tags)
	}
	if _, ok := detail["last_viewed"]; ok {
		t.Error("fresh item must have no last_viewed")
	}

	// Record a view; the detail picks it up.
	doJSON(t, srv, "POST", "/api/v1/users/alice/items/"+id+"/view", "", http.StatusOK)
	detail = doJSON(t, srv, "GET", "/api/v1/users/alice/items/"+id, "", http.StatusOK)
	if detail["last_viewed"] == "" {
		t.Error("last_viewed should be set after a view")
	}

	// Delete, then the item is gone.
	doJSON(t, srv, "DELETE", "/api/v1/users/alice/items/"+id, "", http.StatusOK)
	doJSON(t, srv, "GET", "/api/v1/users/alice/items/"+id, "", http.StatusNotFound)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("tags", "x")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/users/alice/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadQuotaExceeded(t *testing.T) {
	srv, _ := newTestServer(t, "")
	srv.svc.Ingest.QuotaForUser = func(string) int64 { return 1 }

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "big.bin")
	_, _ = fw.Write(bytes.Repeat([]byte{0}, 64))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/users/alice/items", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "quota_exceeded" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestUpdateTagAndNote(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := upload(t, srv, "alice", "memo.txt", "", []byte("hello"))

	doJSON(t, srv, "PUT", "/api/v1/users/alice/items/"+id+"/tag", `{"tag":"重要"}`, http.StatusOK)
	doJSON(t, srv, "PUT", "/api/v1/users/alice/items/"+id+"/note", `{"note":"check later"}`, http.StatusOK)

	detail := doJSON(t, srv, "GET", "/api/v1/users/alice/items/"+id, "", http.StatusOK)
	tags := detail["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "重要" {
		t.Errorf("tags = %v", tags)
	}
	if detail["note"] != "check later" {
		t.Errorf("note = %v", detail["note"])
	}

	// Unknown items are a 404, not a silent no-op.
	doJSON(t, srv, "PUT", "/api/v1/users/alice/items/ghost/tag", `{"tag":"x"}`, http.StatusNotFound)
	doJSON(t, srv, "PUT", "/api/v1/users/alice/items/ghost/note", `{"note":"x"}`, http.StatusNotFound)
}

func TestSendBetweenUsers(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := upload(t, srv, "alice", "budget.xlsx", "finance", []byte("sheet"))

	resp := doJSON(t, srv, "POST", "/api/v1/users/alice/items/"+id+"/send",
		`{"to_user":"bob"}`, http.StatusCreated)
	newID, _ := resp["new_item_id"].(string)
	if newID == "" || newID == id {
		t.Fatalf("new_item_id = %q", newID)
	}

	// The copy is in bob's catalog.
	detail := doJSON(t, srv, "GET", "/api/v1/users/bob/items/"+newID, "", http.StatusOK)
	if detail["original_name"] != "budget.xlsx" || detail["origin_user"] != "alice" {
		t.Errorf("copy = %v", detail)
	}

	// And the transfer shows in the shared send log.
	log := doJSON(t, srv, "GET", "/api/v1/sendlog", "", http.StatusOK)
	entries := log["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	// Sending to yourself is rejected.
	doJSON(t, srv, "POST", "/api/v1/users/alice/items/"+id+"/send",
		`{"to_user":"alice"}`, http.StatusUnprocessableEntity)
	// Missing destination is a bad request.
	doJSON(t, srv, "POST", "/api/v1/users/alice/items/"+id+"/send",
		`{}`, http.StatusBadRequest)
}

func TestDownload(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := upload(t, srv, "alice", "議事録.txt", "", []byte("minutes"))

	req := httptest.NewRequest("GET", "/api/v1/users/alice/items/"+id+"/file", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "minutes" {
		t.Errorf("body = %q", got)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "議事録.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestThumbnailMissing(t *testing.T) {
	srv, _ := newTestServer(t, "")
	id := upload(t, srv, "alice", "doc.pdf", "", []byte("pdf"))

	doJSON(t, srv, "GET", "/api/v1/users/alice/items/"+id+"/thumbnail", "", http.StatusNotFound)
}

func TestZipSelection(t *testing.T) {
	srv, _ := newTestServer(t, "")
	a := upload(t, srv, "alice", "one.pdf", "", []byte("first"))
	b := upload(t, srv, "alice", "two.txt", "", []byte("second"))

	body, _ := json.Marshal(map[string][]string{"item_ids": {a, b, "ghost"}})
	req := httptest.NewRequest("POST", "/api/v1/users/alice/zip", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("empty archive body")
	}

	// A selection with no archivable items is a 404.
	doJSON(t, srv, "POST", "/api/v1/users/alice/zip", `{"item_ids":["ghost"]}`, http.StatusNotFound)
	// An empty selection is a bad request.
	doJSON(t, srv, "POST", "/api/v1/users/alice/zip", `{"item_ids":[]}`, http.StatusBadRequest)
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t, "")
	upload(t, srv, "alice", "a.pdf", "", []byte("12345"))
	upload(t, srv, "alice", "b.txt", "", []byte("123"))

	resp := doJSON(t, srv, "GET", "/api/v1/users/alice/stats", "", http.StatusOK)
	if int(resp["item_count"].(float64)) != 2 {
		t.Errorf("item_count = %v", resp["item_count"])
	}
	if int(resp["total_bytes"].(float64)) != 8 {
		t.Errorf("total_bytes = %v", resp["total_bytes"])
	}
	if resp["quota_bytes"].(float64) <= 0 {
		t.Errorf("quota_bytes = %v", resp["quota_bytes"])
	}
	byKind := resp["by_kind"].([]interface{})
	if len(byKind) != 2 {
		t.Errorf("by_kind = %v", byKind)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	srv, sched := newTestServer(t, "")

	status := doJSON(t, srv, "GET", "/api/v1/scheduler/status", "", http.StatusOK)
	if status["schedule"] != "0 3 * * *" {
		t.Errorf("schedule = %v", status["schedule"])
	}
	if _, ok := status["last_run"]; !ok {
		t.Error("last_run missing")
	}

	doJSON(t, srv, "POST", "/api/v1/scheduler/trigger", "", http.StatusAccepted)
	if sched.triggered != 1 {
		t.Errorf("triggered = %d", sched.triggered)
	}

	sched.busy = true
	doJSON(t, srv, "POST", "/api/v1/scheduler/trigger", "", http.StatusConflict)
}

func TestSchedulerUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, "")
	srv.scheduler = nil

	doJSON(t, srv, "GET", "/api/v1/scheduler/status", "", http.StatusServiceUnavailable)
	doJSON(t, srv, "POST", "/api/v1/scheduler/trigger", "", http.StatusServiceUnavailable)
}

func TestListFilterByKind(t *testing.T) {
	srv, _ := newTestServer(t, "")
	upload(t, srv, "alice", "a.pdf", "", []byte("pdf"))
	upload(t, srv, "alice", "b.txt", "", []byte("txt"))

	list := doJSON(t, srv, "GET", "/api/v1/users/alice/items?kinds=pdf", "", http.StatusOK)
	items := list["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].(map[string]interface{})["kind"] != "pdf" {
		t.Errorf("row = %v", items[0])
	}

	// kinds present but empty selects nothing.
	list = doJSON(t, srv, "GET", "/api/v1/users/alice/items?kinds=", "", http.StatusOK)
	if items := list["items"].([]interface{}); len(items) != 0 {
		t.Errorf("items = %v, want none", items)
	}
}
