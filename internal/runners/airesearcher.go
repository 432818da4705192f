// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package runners

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/quadratic-labs/qd-engine/internal/engine"
	"github.com/quadratic-labs/qd-engine/internal/grid"
)

// AIResearcherRunner treats a code cell's body as a natural-language
// prompt: every get_cells(...) call in the body is replaced by the
// referenced cell's display text first, then the whole prompt goes to a chat
// completion model. It suspends on both the get_cells resolution and
// the outbound model call, so like Python/JavaScript it always answers
// Async.
type AIResearcherRunner struct {
	client *openai.Client
	model  string
}

// NewAIResearcherRunner returns an AIResearcherRunner calling model
// (e.g. "gpt-4o-mini") with apiKey.
func NewAIResearcherRunner(apiKey, model string) *AIResearcherRunner {
	return &AIResearcherRunner{client: openai.NewClient(apiKey), model: model}
}

func (r *AIResearcherRunner) Language() grid.Language { return grid.LanguageAIResearcher }

func (r *AIResearcherRunner) Run(ctx context.Context, req engine.RunRequest) (engine.DispatchOutcome, error) {
	go func() {
		run := r.execute(ctx, req)
		if req.OnAsyncComplete != nil {
			req.OnAsyncComplete(run)
		}
	}()
	return engine.DispatchOutcome{Async: true}, nil
}

func (r *AIResearcherRunner) execute(ctx context.Context, req engine.RunRequest) *grid.CodeRun {
	prompt, accessed, err := renderPrompt(req.Code, req.GetCells)
	if err != nil {
		return &grid.CodeRun{Language: grid.LanguageAIResearcher, Code: req.Code, Err: &grid.RunError{Msg: err.Error()}}
	}

	completion := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		return &grid.CodeRun{
			Language:      grid.LanguageAIResearcher,
			Code:          req.Code,
			CellsAccessed: accessed,
			Err:           &grid.RunError{Msg: fmt.Sprintf("chat completion error: %s", err)},
		}
	}
	if len(resp.Choices) == 0 {
		return &grid.CodeRun{
			Language:      grid.LanguageAIResearcher,
			Code:          req.Code,
			CellsAccessed: accessed,
			Err:           &grid.RunError{Msg: "chat completion returned no choices"},
		}
	}

	answer := capLines(capOutput(resp.Choices[0].Message.Content))
	return &grid.CodeRun{
		Language:      grid.LanguageAIResearcher,
		Code:          req.Code,
		CellsAccessed: accessed,
		Value:         grid.Value{Single: grid.NewText(answer)},
		LastModified:  time.Now(),
	}
}

// renderPrompt resolves every get_cells("A1") call in code into a
// plain-text value, inline, so the model sees referenced data the same
// way a person reading the formula bar would.
func renderPrompt(code string, getCells engine.GetCellsFunc) (string, grid.CellsAccessed, error) {
	accessed := grid.CellsAccessed{}
	var resolveErr error

	rendered := getCellsCallRe.ReplaceAllStringFunc(code, func(match string) string {
		sub := getCellsCallRe.FindStringSubmatch(match)
		a1 := sub[1]
		v, sr, err := getCells(a1)
		if err != nil {
			resolveErr = err
			return match
		}
		accessed.Add(sr)
		return v.Single.String()
	})
	if resolveErr != nil {
		return "", nil, resolveErr
	}
	return strings.TrimSpace(rendered), accessed, nil
}
