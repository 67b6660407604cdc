package models

// SentinelTitle is the title of a thread whose first turn has not
// completed yet. The title synthesizer only ever fires while the stored
// title equals this value.
const SentinelTitle = "Untitled"

// Options are the per-thread model settings. Model is an opaque
// identifier handed to the provider as-is.
type Options struct {
	Model    string `json:"model,omitempty"`
	Thinking bool   `json:"thinking,omitempty"`
}

// Thread is one persisted conversation. The store owns this record
// exclusively; clients hold cached copies.
type Thread struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Owner    string    `json:"owner"`
	Options  Options   `json:"options,omitempty"`
	Messages []Message `json:"messages"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time metadata or thread activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// Deleted marks a thread as soft-deleted; DeletedTS records deletion
	// time (ns). Purged later by the retention runner.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}
