// Package item defines the catalog entry model shared by the stores and
// services: the Item record, kind classification, tag helpers, and the
// error taxonomy surfaced to callers.
package item

import (
	"encoding/json"
	"strings"
	"time"
)

// JST is the timezone used for every persisted timestamp.
var JST = time.FixedZone("JST", 9*60*60)

// NowISO returns the current time as an ISO-8601 string in JST,
// second precision. This is the canonical format for added_at and
// last_viewed_at.
func NowISO() string {
	return time.Now().In(JST).Format(time.RFC3339)
}

// Thumbnail generation outcomes recorded on an item.
const (
	ThumbNone   = "none"
	ThumbOK     = "ok"
	ThumbFailed = "failed"
)

// OriginCopy marks an item created by the send/copy service.
const OriginCopy = "copy"

// Item is one catalog row representing one physical file owned by one
// user. Field names mirror the inbox_items columns.
type Item struct {
	ItemID       string
	Kind         Kind
	StoredRel    string
	OriginalName string
	AddedAt      string
	SizeBytes    int64
	Note         string
	TagsJSON     string
	ThumbRel     string
	ThumbStatus  string
	ThumbError   string
	OriginUser   string
	OriginItemID string
	OriginType   string
}

// Tags decodes the tags_json column. A malformed or empty value decodes
// to an empty list rather than an error; the column is display data.
func (it *Item) Tags() []string {
	return decodeTags(it.TagsJSON)
}

// FirstTag returns the first tag for compact display, or "".
func (it *Item) FirstTag() string {
	return FirstTagJSON(it.TagsJSON)
}

func decodeTags(tagsJSON string) []string {
	if strings.TrimSpace(tagsJSON) == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return []string{}
	}
	if tags == nil {
		return []string{}
	}
	return tags
}

// FirstTagJSON extracts the first element of a tags_json array string.
func FirstTagJSON(tagsJSON string) string {
	tags := decodeTags(tagsJSON)
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}

// NormalizeTags splits free-form tag input into a tag list. Newlines are
// treated as commas; if any comma is present commas win, otherwise the
// input splits on whitespace. Empty elements are dropped, so "" yields
// an empty (not nil) list.
func NormalizeTags(text string) []string {
	s := strings.TrimSpace(text)
	if s == "" {
		return []string{}
	}
	s = strings.ReplaceAll(s, "\n", ",")

	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Fields(s)
	}

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// TagsJSON encodes a tag list as the tags_json column value. A nil or
// empty list encodes as "[]".
func TagsJSON(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// TagsJSONFromInput normalizes free-form input straight to a column value.
func TagsJSONFromInput(text string) string {
	return TagsJSON(NormalizeTags(text))
}
