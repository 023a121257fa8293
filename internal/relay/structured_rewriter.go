package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/etherlabsio/go-m3u8/m3u8"
)

// StructuredRewriter parses playlists with go-m3u8 and rewrites variant and
// segment URIs regardless of their extension. Playlists that fail to parse are
// returned as an error; the caller surfaces that as a processing failure.
type StructuredRewriter struct {
	registry Registry
}

// NewStructuredRewriter returns a StructuredRewriter registering discovered
// URLs in registry.
func NewStructuredRewriter(registry Registry) *StructuredRewriter {
	return &StructuredRewriter{registry: registry}
}

// Rewrite implements Rewriter.Rewrite.
func (w *StructuredRewriter) Rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	playlist, err := m3u8.Read(strings.NewReader(req.Playlist))
	if err != nil {
		return "", fmt.Errorf("parse playlist: %w", err)
	}

	register := func(ref string) (Token, error) {
		return w.registry.Register(ctx, ResolveReference(req.BaseURL, ref))
	}

	for _, item := range playlist.Items {
		switch it := item.(type) {
		case *m3u8.PlaylistItem:
			token, err := register(it.URI)
			if err != nil {
				return "", err
			}
			it.URI = VariantPath(req.Root, token)
		case *m3u8.SegmentItem:
			token, err := register(it.Segment)
			if err != nil {
				return "", err
			}
			it.Segment = SegmentPath(req.Root, token)
		}
	}
	return playlist.String(), nil
}

// NewRewriter picks a Rewriter by name: "structured" selects the go-m3u8
// backed implementation, anything else the line-oriented one.
func NewRewriter(name string, registry Registry) Rewriter {
	if strings.EqualFold(name, "structured") {
		return NewStructuredRewriter(registry)
	}
	return NewLineRewriter(registry)
}
