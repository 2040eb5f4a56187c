package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inboxvault/inboxvault/internal/export"
	"github.com/inboxvault/inboxvault/internal/fileutil"
	"github.com/inboxvault/inboxvault/internal/ingest"
	"github.com/inboxvault/inboxvault/internal/inboxfs"
	"github.com/inboxvault/inboxvault/internal/item"
	"github.com/inboxvault/inboxvault/internal/query"
	"github.com/inboxvault/inboxvault/internal/send"
	"github.com/inboxvault/inboxvault/internal/store"
	"github.com/inboxvault/inboxvault/internal/textutil"
	"github.com/inboxvault/inboxvault/internal/view"
)

// maxUploadBytes caps one multipart upload body.
const maxUploadBytes = 512 << 20

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var (
		na *item.NotAvailableError
		qe *item.QuotaExceededError
		fe *item.IngestFailedError
	)
	switch {
	case errors.Is(err, item.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Item not found")
	case errors.As(err, &na):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", na.Error())
	case errors.As(err, &qe):
		writeError(w, http.StatusRequestEntityTooLarge, "quota_exceeded", qe.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusUnprocessableEntity, "ingest_failed", fe.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Request failed")
	}
}

// ItemSummary is one catalog row in list responses.
type ItemSummary struct {
	ItemID       string   `json:"item_id"`
	Kind         string   `json:"kind"`
	OriginalName string   `json:"original_name"`
	AddedAt      string   `json:"added_at"`
	SizeBytes    int64    `json:"size_bytes"`
	SizeDisplay  string   `json:"size_display"`
	Tags         []string `json:"tags"`
	Note         string   `json:"note,omitempty"`
	ThumbStatus  string   `json:"thumb_status"`
	LastViewed   string   `json:"last_viewed,omitempty"`
}

func summaryFromRow(r query.Row) ItemSummary {
	return ItemSummary{
		ItemID:       r.ItemID,
		Kind:         string(r.Item.Kind),
		OriginalName: r.OriginalName,
		AddedAt:      r.AddedAt,
		SizeBytes:    r.SizeBytes,
		SizeDisplay:  r.SizeDisplay,
		Tags:         r.Tags(),
		Note:         r.Note,
		ThumbStatus:  r.ThumbStatus,
		LastViewed:   r.LastViewed,
	}
}

// parseFilter builds a query filter from list query parameters.
//
// kinds is a comma-separated list; the parameter being present but
// empty means "no kinds selected" and matches nothing, while an absent
// parameter applies no kind narrowing at all.
func parseFilter(r *http.Request) query.Filter {
	q := r.URL.Query()
	var f query.Filter

	if q.Has("kinds") {
		f.KindsChecked = []item.Kind{}
		for _, part := range textutil.SplitTerms(q.Get("kinds")) {
			if k := item.Kind(part); k.Valid() {
				f.KindsChecked = append(f.KindsChecked, k)
			}
		}
	}

	f.TagTerms = textutil.SplitTerms(q.Get("tag"))
	f.NameTerms = textutil.SplitTerms(q.Get("name"))

	if d, err := time.ParseInLocation("2006-01-02", q.Get("added_from"), item.JST); err == nil && q.Get("added_from") != "" {
		f.AddedFrom = &d
	}
	if d, err := time.ParseInLocation("2006-01-02", q.Get("added_to"), item.JST); err == nil && q.Get("added_to") != "" {
		f.AddedTo = &d
	}

	f.SizeMode = query.SizeMode(q.Get("size_mode"))
	if n, err := strconv.ParseInt(q.Get("size_min"), 10, 64); err == nil {
		f.SizeMinBytes = &n
	}
	if n, err := strconv.ParseInt(q.Get("size_max"), 10, 64); err == nil {
		f.SizeMaxBytes = &n
	}

	switch query.LastViewedMode(q.Get("viewed")) {
	case query.LastViewedUnviewed:
		f.LastViewed = query.LastViewedUnviewed
	case query.LastViewedRange:
		f.LastViewed = query.LastViewedRange
		if d, err := time.ParseInLocation("2006-01-02", q.Get("viewed_from"), item.JST); err == nil && q.Get("viewed_from") != "" {
			f.ViewedFrom = &d
		}
		if d, err := time.ParseInLocation("2006-01-02", q.Get("viewed_to"), item.JST); err == nil && q.Get("viewed_to") != "" {
			f.ViewedTo = &d
		}
	case query.LastViewedRecent:
		f.LastViewed = query.LastViewedRecent
		if dur, ok := textutil.ParseRecent(q.Get("viewed_within")); ok {
			f.ViewedSinceISO = time.Now().In(item.JST).Add(-dur).Format(time.RFC3339)
		}
	}

	return f
}

// handleListItems returns one filtered, sorted, paginated catalog page.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	sort := query.SortMode(q.Get("sort"))
	switch sort {
	case query.SortNewest, query.SortViewed, query.SortName:
	default:
		sort = query.SortNewest
	}

	root := s.cfg.InboxRoot()
	result, err := query.FetchPage(r.Context(), s.logger, userSub,
		inboxfs.ItemsDBPath(root, userSub),
		inboxfs.LastViewedDBPath(root, userSub),
		parseFilter(r), sort, pageSize, (page-1)*pageSize)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	summaries := make([]ItemSummary, len(result.Rows))
	for i, row := range result.Rows {
		summaries[i] = summaryFromRow(row)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":     result.Total,
		"page":      page,
		"page_size": pageSize,
		"items":     summaries,
	})
}

// ItemDetail is a full single-item response.
type ItemDetail struct {
	ItemSummary
	StoredRel    string `json:"stored_rel"`
	ThumbRel     string `json:"thumb_rel,omitempty"`
	ThumbError   string `json:"thumb_error,omitempty"`
	OriginUser   string `json:"origin_user,omitempty"`
	OriginItemID string `json:"origin_item_id,omitempty"`
	OriginType   string `json:"origin_type,omitempty"`
}

// getItem loads one catalog row, translating absence to ErrNotFound.
func (s *Server) getItem(userSub, itemID string) (*item.Item, error) {
	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.cfg.InboxRoot(), userSub))
	if err != nil {
		return nil, err
	}
	defer items.Close()

	it, err := items.Get(itemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, item.ErrNotFound
	}
	return it, nil
}

// handleGetItem returns one item with its last-viewed timestamp.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	it, err := s.getItem(userSub, itemID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	detail := ItemDetail{
		ItemSummary: ItemSummary{
			ItemID:       it.ItemID,
			Kind:         string(it.Kind),
			OriginalName: it.OriginalName,
			AddedAt:      it.AddedAt,
			SizeBytes:    it.SizeBytes,
			SizeDisplay:  textutil.FormatBytes(it.SizeBytes),
			Tags:         it.Tags(),
			Note:         it.Note,
			ThumbStatus:  it.ThumbStatus,
		},
		StoredRel:    it.StoredRel,
		ThumbRel:     it.ThumbRel,
		ThumbError:   it.ThumbError,
		OriginUser:   it.OriginUser,
		OriginItemID: it.OriginItemID,
		OriginType:   it.OriginType,
	}

	// Last-viewed is best-effort; the row itself is the answer.
	if lv, err := store.OpenLastViewed(inboxfs.LastViewedDBPath(s.cfg.InboxRoot(), userSub)); err == nil {
		if at, err := lv.Get(userSub, itemID); err == nil {
			detail.LastViewed = at
		}
		lv.Close()
	}

	writeJSON(w, http.StatusOK, detail)
}

// handleUpload ingests one multipart file upload.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Unreadable file body")
		return
	}

	res, err := s.svc.Ingest.Ingest(ingest.Request{
		UserSub:  userSub,
		Filename: header.Filename,
		Data:     data,
		TagsJSON: item.TagsJSONFromInput(r.FormValue("tags")),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"item_id":      res.ItemID,
		"kind":         string(res.Kind),
		"stored_rel":   res.StoredRel,
		"size_bytes":   res.SizeBytes,
		"thumb_status": res.ThumbStatus,
	})
}

// handleDeleteItem removes one item, its file and its thumbnail.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	if err := s.svc.Deletion.Delete(userSub, itemID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "item_id": itemID})
}

// handleRecordView upserts the last-viewed timestamp for an item.
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	if err := view.Record(s.cfg.InboxRoot(), userSub, itemID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded", "item_id": itemID})
}

// handleUpdateTag replaces the item's tag (single-tag editing mode).
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	var body struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	if _, err := s.getItem(userSub, itemID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.cfg.InboxRoot(), userSub))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer items.Close()

	if err := items.UpdateTagSingle(itemID, body.Tag); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "item_id": itemID})
}

// handleUpdateNote replaces the item's free-text note.
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	if _, err := s.getItem(userSub, itemID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.cfg.InboxRoot(), userSub))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer items.Close()

	if err := items.UpdateNote(itemID, body.Note); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "item_id": itemID})
}

// handleSend copies one item into another user's Inbox.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	fromUser := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	var body struct {
		ToUser string `json:"to_user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ToUser == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing to_user")
		return
	}

	newID, err := s.svc.Send.Send(fromUser, body.ToUser, itemID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"new_item_id": newID,
		"from_user":   fromUser,
		"to_user":     body.ToUser,
	})
}

// handleDownload streams the stored original with its original filename.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	it, err := s.getItem(userSub, itemID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	path := inboxfs.FilePath(s.cfg.InboxRoot(), userSub, it.StoredRel)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file_missing", "Stored file is missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+fileutil.SafeFilename(it.OriginalName)+`"`)
	http.ServeContent(w, r, it.OriginalName, time.Time{}, f)
}

// handleThumbnail serves the generated WEBP thumbnail.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")
	itemID := chi.URLParam(r, "id")

	it, err := s.getItem(userSub, itemID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if it.ThumbStatus != item.ThumbOK || it.ThumbRel == "" {
		writeError(w, http.StatusNotFound, "no_thumbnail", "Item has no thumbnail")
		return
	}

	path := inboxfs.ThumbPath(s.cfg.InboxRoot(), userSub, itemID)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_thumbnail", "Thumbnail file is missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/webp")
	http.ServeContent(w, r, itemID+".webp", time.Time{}, f)
}

// handleZip builds a ZIP archive from a selection of items.
func (s *Server) handleZip(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")

	var body struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing item_ids")
		return
	}

	res, err := export.BuildZip(s.cfg.InboxRoot(), userSub, body.ItemIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if len(res.OKIDs) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "None of the requested items could be archived")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="inbox_items.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// handleStats returns per-kind catalog statistics plus quota usage.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userSub := chi.URLParam(r, "user")

	items, err := store.OpenItems(inboxfs.ItemsDBPath(s.cfg.InboxRoot(), userSub))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer items.Close()

	stats, err := items.GetStats()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	used, quota := s.svc.Ingest.UsageForUser(userSub)

	byKind := make([]map[string]interface{}, len(stats.ByKind))
	for i, kc := range stats.ByKind {
		byKind[i] = map[string]interface{}{
			"kind":  string(kc.Kind),
			"count": kc.Count,
			"bytes": kc.Bytes,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item_count":  stats.ItemCount,
		"total_bytes": stats.TotalBytes,
		"by_kind":     byKind,
		"used_bytes":  used,
		"quota_bytes": quota,
	})
}

// handleSendLog returns the shared send history, oldest first.
func (s *Server) handleSendLog(w http.ResponseWriter, r *http.Request) {
	entries, err := send.ReadLog(inboxfs.SendLogPath(s.cfg.InboxRoot()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// handleSchedulerStatus reports the thumbnail repair schedule.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler not running")
		return
	}
	st := s.scheduler.Status()
	resp := map[string]interface{}{
		"schedule": st.Schedule,
		"running":  st.Running,
	}
	if !st.LastRun.IsZero() {
		resp["last_run"] = st.LastRun.Format(time.RFC3339)
	}
	if !st.NextRun.IsZero() {
		resp["next_run"] = st.NextRun.Format(time.RFC3339)
	}
	if st.LastErr != nil {
		resp["last_error"] = st.LastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSchedulerTrigger starts a repair sweep immediately.
func (s *Server) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler not running")
		return
	}
	if !s.scheduler.TriggerNow() {
		writeError(w, http.StatusConflict, "already_running", "A repair sweep is already in flight")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}
