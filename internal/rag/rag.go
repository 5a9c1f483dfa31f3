// Package rag turns a question (plus optional prior turns) into a grounded
// answer with source citations (component C7, RAGOrchestrator).
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/llm"
	"github.com/ragdocs/docqa/internal/search"
	"github.com/ragdocs/docqa/internal/store"
)

// MaxContextChars bounds the assembled context passed to the chat
// provider.
const MaxContextChars = 6000

const groundingPrompt = `You are a document question-answering assistant. Answer only using the information given in the provided context. If the context does not contain enough information to answer, say so plainly instead of guessing. Cite the sources you draw on using their [Source i] label. Never invent document names or content that is not present in the context. If the context is empty, say that no relevant information was found.`

const noContextAnswer = "no indexed documents available to answer that"

// searcher is the slice of *search.Service the orchestrator needs.
type searcher interface {
	HybridWithContext(ctx context.Context, q string, k int, filterDocumentID string, semanticWeight, keywordWeight float64) ([]search.Result, error)
}

// documentLookup is the slice of *store.Store the orchestrator needs, to
// resolve a chunk's document filename for citation formatting.
type documentLookup interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
}

// Orchestrator answers questions by retrieving context via a Service and
// invoking a ChatClient under a grounding instruction.
type Orchestrator struct {
	search searcher
	docs   documentLookup
	chat   llm.ChatClient
}

// New returns an Orchestrator.
func New(searchSvc searcher, docs documentLookup, chat llm.ChatClient) *Orchestrator {
	return &Orchestrator{search: searchSvc, docs: docs, chat: chat}
}

// Source is a cited passage backing an Answer.
type Source struct {
	Index            int
	DocumentID       string
	DocumentFilename string
	ChunkIndex       int
	RelevanceScore   float64
	TextPreview      string
}

// Answer is the orchestrator's result.
type Answer struct {
	Text        string
	Sources     []Source
	ContextUsed int
}

// Turn is a single prior exchange in a conversation, passed through to the
// chat provider unchanged.
type Turn struct {
	Role    string
	Content string
}

// Params configures a single Ask call. Zero values fall back to the
// documented defaults.
type Params struct {
	TopK           int
	SemanticWeight float64
	KeywordWeight  float64
	DocumentID     string
	Temperature    float64
	MaxTokens      int
	History        []Turn
}

func (p Params) withDefaults() Params {
	if p.TopK == 0 {
		p.TopK = 8
	}
	if p.SemanticWeight == 0 && p.KeywordWeight == 0 {
		p.SemanticWeight, p.KeywordWeight = 0.7, 0.3
	}
	if p.Temperature == 0 {
		p.Temperature = 0.7
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 500
	}
	return p
}

// Ask retrieves context for query, assembles a bounded prompt, and
// invokes the chat provider. An empty retrieval result short-circuits the
// completion call entirely.
func (o *Orchestrator) Ask(ctx context.Context, query string, params Params) (*Answer, error) {
	params = params.withDefaults()

	results, err := o.search.HybridWithContext(ctx, query, params.TopK, params.DocumentID, params.SemanticWeight, params.KeywordWeight)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieval: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Text: noContextAnswer, Sources: nil, ContextUsed: 0}, nil
	}

	contextBody, sources, err := o.assembleContext(ctx, results)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(params.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: groundingPrompt + "\n\n" + contextBody})
	for _, t := range params.History {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})

	completion, err := o.chat.Complete(ctx, messages, params.Temperature, params.MaxTokens)
	if err != nil {
		return nil, apperr.Provider("rag: completion", err)
	}

	return &Answer{Text: completion.Text, Sources: sources, ContextUsed: len(sources)}, nil
}

// assembleContext formats results as "[Source i: <filename>]\n<text>\n",
// joined by blank lines, stopping before a result would push the total
// past MaxContextChars. Returns the formatted context body and the
// Sources actually included.
func (o *Orchestrator) assembleContext(ctx context.Context, results []search.Result) (string, []Source, error) {
	filenames := make(map[string]string)

	var b strings.Builder
	var sources []Source

	for _, r := range results {
		filename, ok := filenames[r.DocumentID]
		if !ok {
			doc, err := o.docs.GetDocument(ctx, r.DocumentID)
			if err != nil {
				return "", nil, fmt.Errorf("rag: resolving document %s: %w", r.DocumentID, err)
			}
			filename = doc.Filename
			filenames[r.DocumentID] = filename
		}

		index := len(sources) + 1
		block := fmt.Sprintf("[Source %d: %s]\n%s\n", index, filename, r.Text)
		sep := ""
		if b.Len() > 0 {
			sep = "\n"
		}
		if b.Len()+len(sep)+len(block) > MaxContextChars {
			break
		}
		b.WriteString(sep)
		b.WriteString(block)

		sources = append(sources, Source{
			Index:            index,
			DocumentID:       r.DocumentID,
			DocumentFilename: filename,
			ChunkIndex:       r.ChunkIndex,
			RelevanceScore:   r.CombinedScore,
			TextPreview:      preview(r.Text, 200),
		})
	}

	return b.String(), sources, nil
}

func preview(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
