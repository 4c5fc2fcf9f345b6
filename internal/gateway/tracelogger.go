package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TraceStore persists one TraceRecord per provider attempt and returns its
// log id. The MySQL implementation lives in internal/store/mysql (§3.1).
type TraceStore interface {
	SaveTraceRecord(ctx context.Context, rec *TraceRecord) (string, error)
}

// TraceLogger is C4: it assembles a TraceRecord from one attempt's outcome,
// fills in the upstream-id fallback, and persists it. A persistence failure
// is fatal to the caller's whole execute call (§4.4) — returned already
// wrapped as ClassDbLoggingError so callers never need to re-wrap it.
type TraceLogger struct {
	store TraceStore
}

func NewTraceLogger(store TraceStore) *TraceLogger {
	return &TraceLogger{store: store}
}

// attemptOutcome is the executor's view of one finished (or failed) target
// attempt, handed to Log to persist.
type attemptOutcome struct {
	promptID    string
	modelID     string
	requestBody any
	rawResponse any
	usage       *Usage
	upstreamID  string
	err         error
}

func (l *TraceLogger) Log(ctx context.Context, o attemptOutcome) (string, error) {
	rec := &TraceRecord{PromptID: o.promptID, ModelID: o.modelID}

	if body, err := json.Marshal(o.requestBody); err == nil {
		rec.RequestBody = body
	}

	if o.err != nil {
		rec.Status = ClassOf(o.err).HTTPStatus()
		rec.RawResponse, _ = json.Marshal(map[string]string{"error": o.err.Error()})
	} else {
		rec.Status = 200

		if body, err := json.Marshal(o.rawResponse); err == nil {
			rec.RawResponse = body
		}

		if o.usage != nil {
			promptTokens := o.usage.PromptTokens
			completionTokens := o.usage.CompletionTokens
			rec.InputTokens = &promptTokens
			rec.OutputTokens = &completionTokens
			rec.ReasoningTokens = o.usage.ReasoningTokens
		}
	}

	upstreamID := o.upstreamID
	if upstreamID == "" {
		upstreamID = uuid.NewString()
	}

	rec.UpstreamResponseID = upstreamID

	logID, err := l.store.SaveTraceRecord(ctx, rec)
	if err != nil {
		return "", New(ClassDbLoggingError, fmt.Errorf("save trace record: %w", err))
	}

	return logID, nil
}
