// Package classify decides whether the focused window is a distraction.
package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/pkg/window"
)

// Result is one classification verdict.
type Result struct {
	Analysis     eventlog.Analysis
	AnalysisType string
	TokenUsage   eventlog.TokenUsage
}

// Payload converts the verdict into an ai_analysis record payload.
func (r Result) Payload() eventlog.AIAnalysis {
	return eventlog.AIAnalysis{
		Analysis:     r.Analysis,
		AnalysisType: r.AnalysisType,
		TokenUsage:   r.TokenUsage,
	}
}

// Classifier judges a window against the user's current focus goal, which
// is empty outside focus mode.
type Classifier interface {
	Classify(ctx context.Context, info window.Info, focusGoal string) (Result, error)
}

// AnalysisTypeKeyword identifies verdicts produced by Keyword.
const AnalysisTypeKeyword = "keyword"

// Keyword flags windows whose title or process contains a listed keyword.
type Keyword struct {
	keywords []string
	timeout  time.Duration
}

// NewKeyword builds a keyword classifier. timeout is the suggested break
// reported with each distraction.
func NewKeyword(keywords []string, timeout time.Duration) *Keyword {
	k := &Keyword{timeout: timeout}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			k.keywords = append(k.keywords, kw)
		}
	}
	return k
}

// Classify matches keywords case-insensitively.
func (k *Keyword) Classify(ctx context.Context, info window.Info, focusGoal string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{AnalysisType: AnalysisTypeKeyword}
	title := strings.ToLower(info.Title)
	process := strings.ToLower(info.ProcessName)

	for _, kw := range k.keywords {
		var where string
		switch {
		case strings.Contains(title, kw):
			where = "title"
		case strings.Contains(process, kw):
			where = "process"
		default:
			continue
		}

		reason := fmt.Sprintf("window %s matches distraction keyword %q", where, kw)
		if focusGoal != "" {
			reason += fmt.Sprintf(" while focusing on %q", focusGoal)
		}
		result.Analysis = eventlog.Analysis{
			IsDistracted: true,
			Reason:       reason,
			Timeout:      int64(k.timeout / time.Second),
		}
		return result, nil
	}

	result.Analysis = eventlog.Analysis{Reason: "no distraction keyword matched"}
	return result, nil
}
