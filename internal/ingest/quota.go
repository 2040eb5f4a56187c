package ingest

import "time"

// DefaultQuotaBytes is the uniform per-user Inbox quota: 5 GiB.
// Per-user overrides come in through Service.QuotaForUser.
const DefaultQuotaBytes = 5 * 1024 * 1024 * 1024

// timeNow is swappable in tests to pin dated directory placement.
var timeNow = time.Now
