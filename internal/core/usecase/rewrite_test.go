package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type rewriteGeneratorFake struct {
	reply string
	err   error
}

func (f *rewriteGeneratorFake) Generate(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *rewriteGeneratorFake) GenerateJSON(context.Context, string) (string, error) {
	return "", errors.New("unexpected GenerateJSON call")
}

func (f *rewriteGeneratorFake) GenerateStream(context.Context, string, func(string) error) (string, error) {
	return "", errors.New("unexpected GenerateStream call")
}

func TestRewriteUsesFirstLine(t *testing.T) {
	r := NewQueryRewriter(&rewriteGeneratorFake{reply: "\"chronic headache vata disorder\"\nsecond line noise"})
	got := r.Rewrite(context.Background(), "my head keeps hurting")
	if got != "chronic headache vata disorder" {
		t.Fatalf("Rewrite() = %q", got)
	}
}

func TestRewriteFallsBackOnError(t *testing.T) {
	r := NewQueryRewriter(&rewriteGeneratorFake{err: errors.New("ollama down")})
	if got := r.Rewrite(context.Background(), "my head hurts"); got != "my head hurts" {
		t.Fatalf("Rewrite() = %q, want raw text", got)
	}
}

func TestRewriteFallsBackOnEmptyReply(t *testing.T) {
	r := NewQueryRewriter(&rewriteGeneratorFake{reply: "   \n"})
	if got := r.Rewrite(context.Background(), "my head hurts"); got != "my head hurts" {
		t.Fatalf("Rewrite() = %q, want raw text", got)
	}
}

func TestRewriteEmptyInput(t *testing.T) {
	r := NewQueryRewriter(&rewriteGeneratorFake{reply: "anything"})
	if got := r.Rewrite(context.Background(), "   "); got != "" {
		t.Fatalf("Rewrite() = %q, want empty", got)
	}
}

func TestRewritePromptCarriesComplaint(t *testing.T) {
	prompt := buildRewritePrompt("burning sensation in both feet")
	if !strings.Contains(prompt, "burning sensation in both feet") {
		t.Fatalf("prompt missing complaint:\n%s", prompt)
	}
}
