package gateway

import (
	"context"
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/relaywright/gatewaycore/internal/pkg/streams"
)

const (
	backoffInitial = 100 * time.Millisecond
	backoffCap     = 3 * time.Second
)

// backoffDelay returns a jittered capped-exponential delay for the given
// zero-based retry attempt number, per §4.3/§5 ("capped exponential backoff
// with jitter, initial 100 ms, cap 3 s").
func backoffDelay(attempt int) time.Duration {
	d := backoffInitial << uint(attempt)
	if d <= 0 || d > backoffCap {
		d = backoffCap
	}

	return time.Duration(rand.Int63n(int64(d)))
}

// Executor is C3: drives C1 adapters with per-target retries and ordered
// fallback, logging exactly one TraceRecord per attempted target via C4.
type Executor struct {
	adapters AdapterSet
	creds    *Credentials
	tracer   *TraceLogger
}

func NewExecutor(adapters AdapterSet, creds *Credentials, tracer *TraceLogger) *Executor {
	return &Executor{adapters: adapters, creds: creds, tracer: tracer}
}

// Attempt records one target's caller-visible outcome.
type Attempt struct {
	Key   ProviderModelKey
	LogID string
	Err   error
}

// targetFromFallback builds M' per §4.3 step 4a: shallow-copy M, override
// provider/baseURL/model/maxtokens/temperature from T, and clear the
// fallback policy to prevent recursive fallback.
func targetFromFallback(m *MaterializedRequest, t FallbackTarget) *MaterializedRequest {
	m2 := m.Clone()
	m2.ProviderKind = t.ProviderKind
	m2.Model = t.Model

	if t.BaseURL != "" {
		m2.BaseURL = t.BaseURL
	}

	if t.MaxTokens != nil {
		m2.MaxTokens = t.MaxTokens
	}

	if t.Temperature != nil {
		m2.Temperature = t.Temperature
	}

	m2.FallbackPolicy = nil

	return m2
}

// runTarget executes m against its own provider with up to retries retries
// of capped exponential backoff, retrying only classes §7 marks retryable.
// It returns the terminal response or terminal error once retries (if any)
// are exhausted.
func (e *Executor) runTarget(ctx context.Context, m *MaterializedRequest, retries int) (*UnifiedResponse, error) {
	adapter, err := e.adapters.Get(m.ProviderKind)
	if err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, New(ClassTimeout, ctx.Err())
		}

		resp, err := adapter.Execute(ctx, m, e.creds)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if attempt == retries || !ClassOf(err).retryable() {
			break
		}

		select {
		case <-ctx.Done():
			return nil, New(ClassTimeout, ctx.Err())
		case <-time.After(backoffDelay(attempt)):
		}
	}

	return nil, lastErr
}

func usageOf(resp *UnifiedResponse) *Usage {
	if resp == nil {
		return nil
	}

	return resp.Usage
}

func upstreamIDOf(resp *UnifiedResponse) string {
	if resp == nil {
		return ""
	}

	return resp.ID
}

// attemptAndLog runs one target (primary or fallback) through runTarget and
// logs exactly one TraceRecord for it, per the §4.3 invariant.
func (e *Executor) attemptAndLog(ctx context.Context, m *MaterializedRequest, retries int, attempts *[]Attempt) (*UnifiedResponse, string, error) {
	resp, runErr := e.runTarget(ctx, m, retries)

	logID, logErr := e.tracer.Log(ctx, attemptOutcome{
		promptID:    m.PromptID,
		modelID:     m.Model,
		requestBody: m,
		rawResponse: resp,
		usage:       usageOf(resp),
		upstreamID:  upstreamIDOf(resp),
		err:         runErr,
	})
	if logErr != nil {
		return nil, "", logErr
	}

	*attempts = append(*attempts, Attempt{
		Key:   ProviderModelKey{Provider: m.ProviderKind, Model: m.Model},
		LogID: logID,
		Err:   runErr,
	})

	return resp, logID, runErr
}

func (e *Executor) fallbackExhausted(attempts []Attempt, lastErr error) error {
	failed := lo.Filter(attempts, func(a Attempt, _ int) bool { return a.Err != nil })

	fe := &FallbackExhaustedError{
		AttemptedProviders: lo.Map(attempts, func(a Attempt, _ int) ProviderModelKey { return a.Key }),
		ProviderErrors: lo.Map(failed, func(a Attempt, _ int) AttemptError {
			return AttemptError{Key: a.Key, Err: a.Err.Error()}
		}),
	}

	if lastErr != nil {
		fe.LastError = lastErr.Error()
	}

	return New(ClassFallbackExhausted, fe)
}

// Execute is C3's unary contract (§4.3).
func (e *Executor) Execute(ctx context.Context, m *MaterializedRequest, policy *FallbackPolicy) (*UnifiedResponse, string, []Attempt, error) {
	retries := 0
	if policy != nil {
		retries = policy.RetriesPerTarget
	}

	var attempts []Attempt

	resp, logID, err := e.attemptAndLog(ctx, m, retries, &attempts)
	if err == nil {
		return resp, logID, attempts, nil
	}

	if ClassOf(err) == ClassDbLoggingError {
		return nil, "", attempts, err
	}

	if policy == nil || !policy.Enabled {
		return nil, logID, attempts, err
	}

	class := ClassOf(err)
	lastErr := err
	anyFallbackAttempted := false

	if !class.fallbackEligible() {
		return nil, logID, attempts, lastErr
	}

	for _, t := range policy.Targets {
		if !t.Catches(class) {
			continue
		}

		anyFallbackAttempted = true
		m2 := targetFromFallback(m, t)

		fresp, flogID, ferr := e.attemptAndLog(ctx, m2, retries, &attempts)
		if ferr == nil {
			return fresp, flogID, attempts, nil
		}

		if ClassOf(ferr) == ClassDbLoggingError {
			return nil, "", attempts, ferr
		}

		lastErr = ferr
		logID = flogID
		class = ClassOf(ferr)

		if !class.fallbackEligible() {
			return nil, logID, attempts, lastErr
		}
	}

	if !anyFallbackAttempted {
		return nil, logID, attempts, lastErr
	}

	return nil, logID, attempts, e.fallbackExhausted(attempts, lastErr)
}

// runStreamTarget is runTarget's streaming counterpart: it retries failures
// to *establish* a stream (adapter.ExecuteStream erroring, or the
// multiplexer observing a src error before forwarding any chunk), but never
// retries a failure that already reached the sink.
func (e *Executor) runStreamTarget(ctx context.Context, m *MaterializedRequest, retries int, mx *Multiplexer, sink *streams.ChanStream[*UnifiedChunk]) MultiplexResult {
	adapter, err := e.adapters.Get(m.ProviderKind)
	if err != nil {
		return MultiplexResult{Err: err}
	}

	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return MultiplexResult{Err: New(ClassTimeout, ctx.Err())}
		}

		src, err := adapter.ExecuteStream(ctx, m, e.creds)
		if err != nil {
			lastErr = err

			if attempt == retries || !ClassOf(err).retryable() {
				return MultiplexResult{Err: lastErr}
			}

			select {
			case <-ctx.Done():
				return MultiplexResult{Err: New(ClassTimeout, ctx.Err())}
			case <-time.After(backoffDelay(attempt)):
			}

			continue
		}

		result := mx.Run(ctx, src, sink)
		if result.Err == nil || result.ForwardedAny {
			return result
		}

		lastErr = result.Err

		if attempt == retries || !ClassOf(lastErr).retryable() {
			return MultiplexResult{Err: lastErr}
		}

		select {
		case <-ctx.Done():
			return MultiplexResult{Err: New(ClassTimeout, ctx.Err())}
		case <-time.After(backoffDelay(attempt)):
		}
	}

	return MultiplexResult{Err: lastErr}
}

func (e *Executor) attemptStreamAndLog(ctx context.Context, m *MaterializedRequest, retries int, mx *Multiplexer, sink *streams.ChanStream[*UnifiedChunk], attempts *[]Attempt) (MultiplexResult, string, error) {
	result := e.runStreamTarget(ctx, m, retries, mx, sink)

	logID, logErr := e.tracer.Log(ctx, attemptOutcome{
		promptID:    m.PromptID,
		modelID:     m.Model,
		requestBody: m,
		rawResponse: map[string]any{"content": result.Content},
		usage:       result.Usage,
		upstreamID:  result.UpstreamID,
		err:         result.Err,
	})
	if logErr != nil {
		return result, "", logErr
	}

	*attempts = append(*attempts, Attempt{
		Key:   ProviderModelKey{Provider: m.ProviderKind, Model: m.Model},
		LogID: logID,
		Err:   result.Err,
	})

	return result, logID, result.Err
}

func closeSinkIfUntouched(sink *streams.ChanStream[*UnifiedChunk], result MultiplexResult, err error) {
	if !result.ForwardedAny && err != nil {
		sink.Fail(err)
	}
}

// ExecuteStream is C3's streaming contract (§4.3): identical control flow to
// Execute, but forwarding chunks to sink via the Multiplexer (C5) as each
// target's stream is established.
func (e *Executor) ExecuteStream(ctx context.Context, m *MaterializedRequest, policy *FallbackPolicy, sink *streams.ChanStream[*UnifiedChunk]) (string, []Attempt, error) {
	mx := NewMultiplexer()

	retries := 0
	if policy != nil {
		retries = policy.RetriesPerTarget
	}

	var attempts []Attempt

	result, logID, err := e.attemptStreamAndLog(ctx, m, retries, mx, sink, &attempts)
	if err == nil {
		return logID, attempts, nil
	}

	if ClassOf(err) == ClassDbLoggingError {
		closeSinkIfUntouched(sink, result, err)
		return "", attempts, err
	}

	if result.ForwardedAny {
		return logID, attempts, err
	}

	if policy == nil || !policy.Enabled {
		closeSinkIfUntouched(sink, result, err)
		return logID, attempts, err
	}

	class := ClassOf(err)
	lastErr := err
	lastResult := result
	anyFallbackAttempted := false

	if !class.fallbackEligible() {
		closeSinkIfUntouched(sink, lastResult, lastErr)
		return logID, attempts, lastErr
	}

	for _, t := range policy.Targets {
		if !t.Catches(class) {
			continue
		}

		anyFallbackAttempted = true
		m2 := targetFromFallback(m, t)

		fresult, flogID, ferr := e.attemptStreamAndLog(ctx, m2, retries, mx, sink, &attempts)
		if ferr == nil {
			return flogID, attempts, nil
		}

		if ClassOf(ferr) == ClassDbLoggingError {
			closeSinkIfUntouched(sink, fresult, ferr)
			return "", attempts, ferr
		}

		if fresult.ForwardedAny {
			return flogID, attempts, ferr
		}

		lastErr = ferr
		lastResult = fresult
		logID = flogID
		class = ClassOf(ferr)

		if !class.fallbackEligible() {
			closeSinkIfUntouched(sink, lastResult, lastErr)
			return logID, attempts, lastErr
		}
	}

	if !anyFallbackAttempted {
		closeSinkIfUntouched(sink, lastResult, lastErr)
		return logID, attempts, lastErr
	}

	exhausted := e.fallbackExhausted(attempts, lastErr)
	closeSinkIfUntouched(sink, lastResult, exhausted)

	return logID, attempts, exhausted
}
