package relay

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// StreamInfTag marks variant entries; its presence makes a playlist a master playlist.
const StreamInfTag = "EXT-X-STREAM-INF"

// Scope tells the rewriter which fetch a playlist came from.
type Scope int

const (
	// ScopeStream is a root /stream fetch: master playlists get their variant
	// references rewritten, media playlists their segment references.
	ScopeStream Scope = iota
	// ScopeVariant is a /variant fetch: segment references are rewritten,
	// followed by nested playlist references that do not mention ".ts".
	ScopeVariant
)

// RewriteRequest is the input to a Rewriter.
type RewriteRequest struct {
	Playlist string // raw M3U8 text
	BaseURL  string // URL the playlist was fetched from
	Root     Token  // token threaded through every emitted relay path
	Scope    Scope
}

// Rewriter turns an origin playlist into one whose references all point back
// at the relay, registering every discovered URL as a side effect.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// IsMasterPlaylist reports whether playlist lists variant streams.
func IsMasterPlaylist(playlist string) bool {
	return strings.Contains(playlist, StreamInfTag)
}

// VariantPath is the relay path serving the variant playlist variant of root.
func VariantPath(root, variant Token) string {
	return "/variant/" + string(root) + "/" + string(variant)
}

// SegmentPath is the relay path serving a segment of root.
func SegmentPath(root, segment Token) string {
	return "/segment/" + string(root) + "/" + string(segment)
}

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// ResolveReference makes ref absolute against base. References that start
// with a scheme are returned unchanged; "/path" and "//host/path" are resolved
// against base's scheme and host; anything else is appended to base truncated
// after its last '/'.
func ResolveReference(base, ref string) string {
	if schemePrefix.MatchString(ref) {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		if b, err := url.Parse(base); err == nil && b.Host != "" {
			if r, err := url.Parse(ref); err == nil {
				return b.ResolveReference(r).String()
			}
		}
	}
	return base[:strings.LastIndex(base, "/")+1] + ref
}

// LineRewriter rewrites playlists line by line, matching bare reference lines
// by extension rather than parsing the M3U8 grammar. Tag and comment lines are
// never touched.
type LineRewriter struct {
	registry Registry
}

// NewLineRewriter returns a LineRewriter registering discovered URLs in registry.
func NewLineRewriter(registry Registry) *LineRewriter {
	return &LineRewriter{registry: registry}
}

// Rewrite implements Rewriter.Rewrite.
func (w *LineRewriter) Rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	var match func(ref string) (pathFor func(Token, Token) string, ok bool)

	switch {
	case req.Scope == ScopeVariant:
		match = func(ref string) (func(Token, Token) string, bool) {
			switch {
			case strings.HasSuffix(ref, ".ts"):
				return SegmentPath, true
			case strings.HasSuffix(ref, ".m3u8") && !strings.Contains(ref, ".ts"):
				return VariantPath, true
			}
			return nil, false
		}
	case IsMasterPlaylist(req.Playlist):
		match = func(ref string) (func(Token, Token) string, bool) {
			return VariantPath, strings.HasSuffix(ref, ".m3u8")
		}
	default:
		match = func(ref string) (func(Token, Token) string, bool) {
			return SegmentPath, strings.HasSuffix(ref, ".ts")
		}
	}

	lines := strings.Split(req.Playlist, "\n")
	for i, line := range lines {
		body, cr := strings.CutSuffix(line, "\r")
		ref := strings.TrimSpace(body)
		if ref == "" || strings.HasPrefix(ref, "#") {
			continue
		}
		pathFor, ok := match(ref)
		if !ok {
			continue
		}

		token, err := w.registry.Register(ctx, ResolveReference(req.BaseURL, ref))
		if err != nil {
			return "", fmt.Errorf("rewrite line %d: %w", i+1, err)
		}
		lines[i] = pathFor(req.Root, token)
		if cr {
			lines[i] += "\r"
		}
	}
	return strings.Join(lines, "\n"), nil
}
