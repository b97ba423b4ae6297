// Package probe verifies vision capability empirically: it sends each
// model a minimal image request and classifies the outcome.
package probe

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/llm"
	"github.com/graphpipe/graphpipe/internal/observability"
)

// tinyPNGBase64 is a 1x1 white-pixel PNG, the smallest payload that still
// exercises the image input path.
const tinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/wcAAwAB/epv2AAAAABJRU5ErkJggg=="

const probePrompt = "Describe this image."

// ChatClient is the completion surface the prober needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Prober classifies models' vision capability by observation.
type Prober struct {
	client    ChatClient
	delay     time.Duration
	timeout   time.Duration
	maxTokens int
	logger    *observability.Logger

	// Progress, if set, is called after each probe with the running count.
	Progress func(done, total int, modelID string, verdict catalog.VisionSupport)
}

// New returns a prober. delay is the pause between consecutive probes,
// timeout bounds each individual probe call.
func New(client ChatClient, delay, timeout time.Duration, maxTokens int, logger *observability.Logger) *Prober {
	return &Prober{
		client:    client,
		delay:     delay,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger.WithComponent("probe"),
	}
}

// TinyPNG returns the probe image bytes.
func TinyPNG() []byte {
	data, err := base64.StdEncoding.DecodeString(tinyPNGBase64)
	if err != nil {
		panic("probe: invalid embedded png: " + err.Error())
	}
	return data
}

// ProbeModel sends one minimal image request to the model and classifies
// the outcome. A successful completion means supported; a definitive
// image rejection means unsupported. Anything else (timeouts, rate
// limits, upstream failures) is inconclusive and returns unknown so the
// model is retried on a later run.
func (p *Prober) ProbeModel(ctx context.Context, modelID string) catalog.VisionSupport {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.ChatCompletion(probeCtx, llm.ChatRequest{
		Model: modelID,
		Messages: []llm.Message{{
			Role: "user",
			Content: []llm.ContentPart{
				llm.TextPart(probePrompt),
				llm.ImagePart("image/png", TinyPNG()),
			},
		}},
		MaxTokens: p.maxTokens,
	})

	switch {
	case err == nil:
		p.logger.Info().Str("model", modelID).Msg("vision probe succeeded")
		return catalog.VisionSupported
	case errors.Is(err, llm.ErrImageRejected):
		p.logger.Info().Str("model", modelID).Err(err).Msg("model rejected image input")
		return catalog.VisionUnsupported
	default:
		p.logger.Warn().Str("model", modelID).Err(err).Msg("vision probe inconclusive")
		return catalog.VisionUnknown
	}
}

// Stats summarizes one probing pass.
type Stats struct {
	Probed       int
	Supported    int
	Unsupported  int
	Inconclusive int
}

// ProbeUnverified probes every model in the catalog whose capability is
// still unknown, in stable id order, pausing between probes. Definitive
// verdicts are written into the catalog and persisted via save after each
// one, so an interrupted run loses at most the probe in flight.
func (p *Prober) ProbeUnverified(ctx context.Context, cat *catalog.Catalog, save func() error) (Stats, error) {
	ids := cat.Unverified()
	var stats Stats

	for i, id := range ids {
		if i > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, domain.TransportError("probing aborted", ctx.Err())
			case <-time.After(p.delay):
			}
		}

		verdict := p.ProbeModel(ctx, id)
		stats.Probed++
		switch verdict {
		case catalog.VisionSupported:
			stats.Supported++
		case catalog.VisionUnsupported:
			stats.Unsupported++
		default:
			stats.Inconclusive++
		}

		if verdict != catalog.VisionUnknown {
			if err := cat.SetVisionVerdict(id, verdict); err != nil {
				return stats, err
			}
			if save != nil {
				if err := save(); err != nil {
					return stats, err
				}
			}
		}

		if p.Progress != nil {
			p.Progress(i+1, len(ids), id, verdict)
		}
		if ctx.Err() != nil {
			return stats, domain.TransportError("probing aborted", ctx.Err())
		}
	}

	return stats, nil
}
