// Package titles derives a short thread title from the first completed
// exchange. It runs at most once per thread: the write is gated on the
// stored title still being the sentinel, so a user rename always wins.
package titles

import (
	"context"
	"strings"

	"github.com/westbrookdaniel/chat/pkg/codec"
	"github.com/westbrookdaniel/chat/pkg/logger"
	"github.com/westbrookdaniel/chat/pkg/models"
	"github.com/westbrookdaniel/chat/pkg/provider"
	"github.com/westbrookdaniel/chat/pkg/store"
)

const systemPrompt = "Generate a concise, descriptive title (max 30 characters) for this chat thread based on the conversation content. The title should capture the main topic or purpose of the discussion. Do not include quotes in your response. ONLY respond with the title."

const maxTitleRunes = 30

// Synthesize derives and persists a title for the thread. A failed or
// empty synthesis leaves the sentinel in place so the gate re-fires on
// the next turn. Returns the title that is now effective.
func Synthesize(ctx context.Context, f *provider.Factory, key string, t models.Thread) (string, error) {
	prompt := codec.HistoryPlainText(t.Messages)
	raw, err := f.Oneshot(ctx, key, f.TitleModel(), systemPrompt, prompt)
	if err != nil {
		return models.SentinelTitle, err
	}
	title := clean(raw)
	if title == "" {
		title = models.SentinelTitle
	}
	if title == models.SentinelTitle {
		return title, nil
	}
	wrote, err := store.SetTitleIfSentinel(t.Owner, t.ID, title)
	if err != nil {
		return models.SentinelTitle, err
	}
	if !wrote {
		// someone renamed the thread while we were synthesizing; theirs wins
		logger.Debug("title_already_set", "thread", t.ID)
		cur, err := store.GetThread(t.Owner, t.ID)
		if err != nil {
			return models.SentinelTitle, err
		}
		return cur.Title, nil
	}
	logger.Info("title_synthesized", "thread", t.ID, "title", title)
	return title, nil
}

// clean trims whitespace and stray quotes and clamps to the title budget.
func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > maxTitleRunes {
		s = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	return s
}
