package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

const defaultTopK = 3

type Searcher interface {
	Search(ctx context.Context, query string, topK int) (models.SearchResult, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	store Searcher
	llm   Generator
	topK  int
}

func NewRAG(store Searcher, llm Generator, topK int) *RAG {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &RAG{store: store, llm: llm, topK: topK}
}

// Answer retrieves context for question and asks the model. Failures are reported in the
// returned Answer, never as an error.
func (r *RAG) Answer(ctx context.Context, question string, topK int) models.Answer {
	if topK <= 0 {
		topK = r.topK
	}
	ans := models.Answer{Question: question}

	result, err := r.store.Search(ctx, question, topK)
	if err != nil {
		return failed(ans, err)
	}
	if result.Empty() {
		ans.Text = models.NoDocumentsAnswer
		ans.Status = models.StatusNoDocuments
		return ans
	}

	prompt := BuildPrompt(result.Documents(), question)
	text, err := r.llm.Generate(ctx, prompt)
	if err != nil {
		return failed(ans, err)
	}

	ans.Text = text
	ans.Status = models.StatusAnswered
	for _, c := range result.Chunks {
		ans.Sources = append(ans.Sources, c.Metadata)
	}
	log.Debug().Str("question", question).Int("sources", len(ans.Sources)).Msg("Answered question")
	return ans
}

// Query is Answer reduced to its text.
func (r *RAG) Query(ctx context.Context, question string, topK int) string {
	return r.Answer(ctx, question, topK).Text
}

// BuildPrompt joins the retrieved documents and fills the answer template.
func BuildPrompt(documents []string, question string) string {
	return fmt.Sprintf(models.PromptTemplate, strings.Join(documents, models.ContextSeparator), question)
}

func failed(ans models.Answer, err error) models.Answer {
	log.Error().Err(err).Str("question", ans.Question).Msg("Error in RAG pipeline")
	ans.Text = models.ErrorAnswerPrefix + err.Error()
	ans.Status = models.StatusFailed
	ans.Err = err
	return ans
}
