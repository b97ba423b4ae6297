package extract

import (
	"context"

	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/llm"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// extractionPrompt pins the answer to the two-line format ParseGraph
// understands.
const extractionPrompt = `You are looking at a diagram of an undirected graph.
Identify every node label and every edge between nodes.
Answer with exactly two lines and nothing else:
Nodes: A, B, C
Edges: A-B, B-C
Use the labels exactly as drawn. If there are no edges, leave the Edges line empty after the colon.`

// ChatClient is the completion surface the requester needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Requester asks a model for the structure of a graph diagram. It makes
// exactly one attempt per call; retry policy is the caller's concern, and
// a parse failure must never be silently resent.
type Requester struct {
	client    ChatClient
	maxTokens int
	logger    *observability.Logger
}

// NewRequester returns a requester using the given completion client.
func NewRequester(client ChatClient, maxTokens int, logger *observability.Logger) *Requester {
	return &Requester{
		client:    client,
		maxTokens: maxTokens,
		logger:    logger.WithComponent("extract"),
	}
}

// Extract sends the page image to modelID and parses the answer into a
// graph structure. Transport failures and parse failures come back as
// distinct typed errors; parse failures carry the raw model output.
func (r *Requester) Extract(ctx context.Context, modelID string, img domain.PageImage) (*domain.GraphStructure, error) {
	answer, err := r.client.ChatCompletion(ctx, llm.ChatRequest{
		Model: modelID,
		Messages: []llm.Message{{
			Role: "user",
			Content: []llm.ContentPart{
				llm.TextPart(extractionPrompt),
				llm.ImagePart(img.MIMEType, img.Bytes),
			},
		}},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return nil, err
	}

	graph, err := ParseGraph(answer)
	if err != nil {
		r.logger.Warn().Str("model", modelID).Err(err).Msg("unparseable model answer")
		return nil, err
	}

	r.logger.Info().
		Str("model", modelID).
		Int("nodes", len(graph.Nodes)).
		Int("edges", len(graph.Edges)).
		Msg("graph structure extracted")
	return graph, nil
}
