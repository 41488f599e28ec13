package llm

import (
	"context"
	"strings"
)

// Generator bridges a Provider and a PromptAssembler into the plain
// generate(prompt, context) capability the conversation layer consumes.
type Generator struct {
	provider  Provider
	assembler *PromptAssembler
}

// NewGenerator creates a generator backed by the given provider.
func NewGenerator(provider Provider, assembler *PromptAssembler) *Generator {
	return &Generator{
		provider:  provider,
		assembler: assembler,
	}
}

// Generate assembles the full chat request around the prompt and the
// chapter content, sends it, and returns the assistant's text.
func (g *Generator) Generate(ctx context.Context, prompt, contextContent string) (string, error) {
	req := g.assembler.Assemble(prompt, "", contextContent, nil)
	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// GenerateStream behaves like Generate but delivers incremental text
// through onDelta as it arrives. A provider without streaming support
// falls back to a single Chat call delivered as one delta.
func (g *Generator) GenerateStream(ctx context.Context, prompt, contextContent string, onDelta func(delta string)) (string, error) {
	if !g.provider.Capabilities().SupportsStreaming {
		text, err := g.Generate(ctx, prompt, contextContent)
		if err != nil {
			return "", err
		}
		onDelta(text)
		return text, nil
	}

	req := g.assembler.Assemble(prompt, "", contextContent, nil)
	chunks, err := g.provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Delta != "" {
			sb.WriteString(chunk.Delta)
			onDelta(chunk.Delta)
		}
		if chunk.Done {
			break
		}
	}
	return sb.String(), nil
}
