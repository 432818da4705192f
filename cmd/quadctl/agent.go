// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

// promptOnceViaOpencode opens one session against a running opencode
// server, sends prompt, and renders the text/reasoning parts of the
// reply — the one-shot sibling of a chat loop, for scripting quadctl
// into a shell pipeline rather than an interactive REPL.
func promptOnceViaOpencode(ctx context.Context, baseURL, title, model, prompt string) (string, error) {
	client := opencode.NewClient(option.WithBaseURL(baseURL))

	session, err := client.Session.New(ctx, opencode.SessionNewParams{
		Title: opencode.F(title),
	})
	if err != nil {
		return "", fmt.Errorf("quadctl: create opencode session: %w", err)
	}

	params := opencode.SessionPromptParams{
		Parts: opencode.F([]opencode.SessionPromptParamsPartUnion{
			opencode.TextPartInputParam{
				Type: opencode.F(opencode.TextPartInputTypeText),
				Text: opencode.F(prompt),
			},
		}),
	}
	if model != "" {
		providerID, modelID := "", model
		if idx := strings.Index(model, "/"); idx >= 0 {
			providerID, modelID = model[:idx], model[idx+1:]
		}
		params.Model = opencode.F(opencode.SessionPromptParamsModel{
			ProviderID: opencode.F(providerID),
			ModelID:    opencode.F(modelID),
		})
	}

	message, err := client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		return "", fmt.Errorf("quadctl: send prompt: %w", err)
	}

	var sb strings.Builder
	for _, part := range message.Parts {
		switch part.Type {
		case opencode.PartTypeText, opencode.PartTypeReasoning:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
