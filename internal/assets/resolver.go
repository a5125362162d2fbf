package assets

import "strings"

// Resolver normalizes the backend's heterogeneous image references into
// something directly renderable or fetchable. The backend hands out four
// shapes through the same field: full URLs, server-relative upload paths,
// complete data URIs and raw base64 payloads with no media-type marker.
type Resolver struct {
	// MediaOrigin is the backend origin that serves /uploads paths,
	// without a trailing slash.
	MediaOrigin string
}

func NewResolver(mediaOrigin string) *Resolver {
	return &Resolver{MediaOrigin: strings.TrimRight(mediaOrigin, "/")}
}

// Resolve is a pure string transform; it never fetches or decodes. Fetch and
// decode failures are the renderer's problem (placeholder on failure).
//
// Match order matters: a raw base64 payload can coincidentally start with
// characters that would be misread by a later rule, so the checks
// short-circuit in data-URI, absolute, relative, raw order.
func (r *Resolver) Resolve(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "data:image/"):
		return ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "/uploads/"):
		return r.MediaOrigin + ref
	case strings.HasPrefix(ref, "uploads/"):
		return r.MediaOrigin + "/" + ref
	default:
		// Raw base64 payload missing its marker.
		return "data:image/png;base64," + ref
	}
}
