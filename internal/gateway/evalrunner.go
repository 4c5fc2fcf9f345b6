package gateway

import (
	"context"

	"github.com/google/uuid"
)

// EvalStore is the Evaluation Runner's store collaborator: the run-execution
// writes plus the surrounding CRUD surface §4.6.1 adds on top of the base
// spec's C6 contract.
type EvalStore interface {
	GetPromptVersion(ctx context.Context, promptVersionID string) (*PromptVersion, error)
	ListEvalInputs(ctx context.Context, promptID string) ([]*EvalInput, error)
	SaveEvalRun(ctx context.Context, run *EvalRun) error

	GetEvalRun(ctx context.Context, runID, evalID string) (*EvalRun, bool, error)
	ListEvalRunsByVersion(ctx context.Context, promptVersionID string) ([]*EvalRun, error)
	GetEvalPerformance(ctx context.Context, promptID string) (*EvalPerformance, error)
	UpdateEvalRunScore(ctx context.Context, evalRunID string, score int) error
}

// EvalRunner is C6: fan out one PromptVersion against every EvalInput bound
// to its prompt, sequentially, under one shared run id.
type EvalRunner struct {
	store        EvalStore
	materializer *Materializer
	executor     *Executor
}

func NewEvalRunner(store EvalStore, materializer *Materializer, executor *Executor) *EvalRunner {
	return &EvalRunner{store: store, materializer: materializer, executor: executor}
}

// EvalRunResult is execute_eval_run's return shape (§4.6).
type EvalRunResult struct {
	RunID string
	Runs  []*EvalRun
}

// ExecuteEvalRun implements §4.6: a fresh run id, inputs processed in stored
// order, one EvalRun persisted per input that succeeds. A failed input is
// silently absent from the result — see DESIGN.md's Open Question decision
// on why no partial-failure signal is surfaced here.
func (r *EvalRunner) ExecuteEvalRun(ctx context.Context, promptID, promptVersionID string) (*EvalRunResult, error) {
	version, err := r.store.GetPromptVersion(ctx, promptVersionID)
	if err != nil {
		return nil, err
	}

	inputs, err := r.store.ListEvalInputs(ctx, promptID)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	result := &EvalRunResult{RunID: runID}

	for _, input := range inputs {
		run, err := r.runOne(ctx, runID, version, input)
		if err != nil {
			continue
		}

		result.Runs = append(result.Runs, run)
	}

	return result, nil
}

func (r *EvalRunner) runOne(ctx context.Context, runID string, version *PromptVersion, input *EvalInput) (*EvalRun, error) {
	systemContext := string(input.SystemContext)
	if systemContext == "" {
		systemContext = "{}"
	}

	req := &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: systemContext},
			{Role: RoleUser, Content: input.UserContent},
		},
	}

	materialized, err := r.materializer.Materialize(version, req)
	if err != nil {
		return nil, err
	}

	resp, _, _, err := r.executor.Execute(ctx, materialized, nil)
	if err != nil {
		return nil, err
	}

	output := ""
	if len(resp.Choices) > 0 {
		output = resp.Choices[0].Message.Content
	}

	run := &EvalRun{
		RunID:           runID,
		PromptVersionID: version.ID,
		EvalID:          input.ID,
		Output:          output,
	}

	if err := r.store.SaveEvalRun(ctx, run); err != nil {
		return nil, err
	}

	return run, nil
}

// GetEvalRun, ListEvalRunsByVersion, GetEvalPerformance and UpdateEvalRunScore
// are plain pass-throughs to the store: §4.6.1 treats them as CRUD with no
// core business logic of their own.

func (r *EvalRunner) GetEvalRun(ctx context.Context, runID, evalID string) (*EvalRun, bool, error) {
	return r.store.GetEvalRun(ctx, runID, evalID)
}

func (r *EvalRunner) ListEvalRunsByVersion(ctx context.Context, promptVersionID string) ([]*EvalRun, error) {
	return r.store.ListEvalRunsByVersion(ctx, promptVersionID)
}

func (r *EvalRunner) GetEvalPerformance(ctx context.Context, promptID string) (*EvalPerformance, error) {
	return r.store.GetEvalPerformance(ctx, promptID)
}

func (r *EvalRunner) UpdateEvalRunScore(ctx context.Context, evalRunID string, score int) error {
	return r.store.UpdateEvalRunScore(ctx, evalRunID, score)
}
