package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"aster/internal/blobstore"
	"aster/internal/engine/ports"
	"aster/internal/logging"
	"aster/internal/tokenutil"
)

// DefaultInlineTokenLimit separates artifacts folded verbatim into context
// from artifacts stored by reference.
const DefaultInlineTokenLimit = 512

// ArtifactProcessor materializes the artifact specs a tool declares
// alongside its result. Small payloads stay inline so the model sees them
// next turn; large payloads go to the blob store and only a reference is
// folded into context. Durable artifacts are additionally persisted as
// task outputs that outlive the run.
type ArtifactProcessor struct {
	blobs   blobstore.BlobStore
	store   ports.TaskStore
	emitter *Emitter
	clock   ports.Clock
	logger  ports.Logger

	inlineTokenLimit int
}

// ArtifactProcessorConfig wires an ArtifactProcessor.
type ArtifactProcessorConfig struct {
	Blobs            blobstore.BlobStore
	Store            ports.TaskStore
	Emitter          *Emitter
	Clock            ports.Clock
	Logger           ports.Logger
	InlineTokenLimit int
}

// NewArtifactProcessor constructs a processor.
func NewArtifactProcessor(cfg ArtifactProcessorConfig) *ArtifactProcessor {
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger("ArtifactProcessor")
	}
	if cfg.InlineTokenLimit <= 0 {
		cfg.InlineTokenLimit = DefaultInlineTokenLimit
	}
	return &ArtifactProcessor{
		blobs:            cfg.Blobs,
		store:            cfg.Store,
		emitter:          cfg.Emitter,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		inlineTokenLimit: cfg.InlineTokenLimit,
	}
}

// Ingest materializes every spec on the invocation and returns the
// resulting artifacts together with the context line describing each one.
// A failed blob write degrades that artifact to a truncated inline copy
// rather than failing the step.
func (p *ArtifactProcessor) Ingest(ctx context.Context, inv *ports.ToolInvocation, correlationID string) ([]ports.ToolArtifact, []string, error) {
	if len(inv.Artifacts) == 0 {
		return nil, nil, nil
	}

	artifacts := make([]ports.ToolArtifact, 0, len(inv.Artifacts))
	folds := make([]string, 0, len(inv.Artifacts))

	for _, spec := range inv.Artifacts {
		artifact := ports.ToolArtifact{
			ID:           uuid.NewString(),
			TaskID:       inv.TaskID,
			InvocationID: inv.ID,
			Name:         spec.Name,
			Kind:         spec.Kind,
			Visibility:   ports.ArtifactContextOnly,
			MediaType:    spec.MediaType,
			SizeBytes:    len(spec.Content),
			TokenCount:   tokenutil.Count(spec.Content),
			CreatedAt:    p.clock.Now(),
		}
		if spec.Durable {
			artifact.Visibility = ports.ArtifactDurableOutput
		}

		if artifact.TokenCount <= p.inlineTokenLimit {
			artifact.Inline = spec.Content
		} else {
			key, err := p.blobs.Put(ctx, "", []byte(spec.Content), spec.MediaType)
			if err != nil {
				p.logger.Warn("Blob write failed for artifact %s (tool %s), inlining truncated copy: %v", spec.Name, inv.ToolName, err)
				artifact.Inline = tokenutil.Truncate(spec.Content, p.inlineTokenLimit)
			} else {
				artifact.ContentRef = key
			}
		}

		if err := p.store.SaveArtifact(ctx, &artifact); err != nil {
			return nil, nil, fmt.Errorf("save artifact %s: %w", spec.Name, err)
		}

		artifacts = append(artifacts, artifact)
		folds = append(folds, p.foldLine(artifact))

		if p.emitter != nil {
			p.emitter.Emit(ctx, &ArtifactProducedEvent{
				BaseEvent:  newBaseEvent(inv.TaskID, correlationID, ports.CategoryArtifact, artifact.CreatedAt),
				ArtifactID: artifact.ID,
				CallID:     inv.CallID,
				Kind:       artifact.Kind,
				Visibility: artifact.Visibility,
				SizeBytes:  artifact.SizeBytes,
			})
		}
	}

	return artifacts, folds, nil
}

// foldLine renders the context entry for one artifact. Inline artifacts
// carry their content; referenced artifacts carry a retrievable pointer.
func (p *ArtifactProcessor) foldLine(a ports.ToolArtifact) string {
	if a.Inline != "" && a.ContentRef == "" {
		return fmt.Sprintf("[artifact %s kind=%s]\n%s", a.Name, a.Kind, a.Inline)
	}
	return fmt.Sprintf("[artifact %s kind=%s stored ref=%s size=%dB tokens=%d]", a.Name, a.Kind, a.ContentRef, a.SizeBytes, a.TokenCount)
}
