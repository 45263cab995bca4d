package codec

import (
	"mime"
	"strconv"
	"strings"
)

const wildcard = "*"

type MediaType struct {
	Type    string
	Subtype string
	Params  map[string]string
}

var (
	MediaAll         = MediaType{Type: wildcard, Subtype: wildcard}
	MediaJSON        = MediaType{Type: "application", Subtype: "json"}
	MediaTextPlain   = MediaType{Type: "text", Subtype: "plain"}
	MediaOctetStream = MediaType{Type: "application", Subtype: "octet-stream"}
)

// ParseMediaType accepts the short forms "*" and "" as */*. The quality
// parameter is not kept.
func ParseMediaType(raw string) (MediaType, error) {
	parsed, _, err := parseWeighted(raw)
	return parsed, err
}

// ParseMediaTypes parses an Accept style list in declared order. Entries that
// do not parse are skipped and entries with q=0 are refused. An empty list
// means */*; a list whose every entry was refused yields no media types.
func ParseMediaTypes(values []string) []MediaType {
	out := make([]MediaType, 0, len(values))
	refused := false
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			parsed, quality, err := parseWeighted(part)
			if err != nil {
				continue
			}
			if quality <= 0 {
				refused = true
				continue
			}
			out = append(out, parsed)
		}
	}
	if len(out) == 0 && !refused {
		return []MediaType{MediaAll}
	}
	return out
}

func parseWeighted(raw string) (MediaType, float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == wildcard {
		return MediaAll, 1, nil
	}
	full, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return MediaType{}, 0, err
	}
	kind, sub, ok := strings.Cut(full, "/")
	if !ok || kind == "" || sub == "" {
		return MediaType{}, 0, mime.ErrInvalidMediaParameter
	}
	if kind == wildcard && sub != wildcard {
		return MediaType{}, 0, mime.ErrInvalidMediaParameter
	}
	quality := 1.0
	if rawQ, ok := params["q"]; ok {
		q, err := strconv.ParseFloat(strings.TrimSpace(rawQ), 64)
		if err != nil || q < 0 || q > 1 {
			return MediaType{}, 0, mime.ErrInvalidMediaParameter
		}
		quality = q
		delete(params, "q")
	}
	if len(params) == 0 {
		params = nil
	}
	return MediaType{Type: kind, Subtype: sub, Params: params}, quality, nil
}

func (m MediaType) IsWildcardType() bool {
	return m.Type == wildcard
}

func (m MediaType) IsWildcardSubtype() bool {
	return m.Subtype == wildcard || strings.HasPrefix(m.Subtype, "*+")
}

// IsConcrete reports whether the media type can be sent as a Content-Type.
func (m MediaType) IsConcrete() bool {
	return !m.IsWildcardType() && !m.IsWildcardSubtype()
}

// Includes reports whether other falls within m, e.g. text/* includes
// text/plain and application/*+json includes application/problem+json.
func (m MediaType) Includes(other MediaType) bool {
	if m.IsWildcardType() {
		return true
	}
	if !strings.EqualFold(m.Type, other.Type) {
		return false
	}
	if strings.EqualFold(m.Subtype, other.Subtype) || m.Subtype == wildcard {
		return true
	}
	if suffix, ok := strings.CutPrefix(m.Subtype, "*+"); ok {
		_, otherSuffix, found := strings.Cut(other.Subtype, "+")
		return found && strings.EqualFold(suffix, otherSuffix)
	}
	return false
}

func (m MediaType) IsCompatibleWith(other MediaType) bool {
	return m.Includes(other) || other.Includes(m)
}

func (m MediaType) Charset() string {
	return m.Params["charset"]
}

func (m MediaType) WithoutParams() MediaType {
	return MediaType{Type: m.Type, Subtype: m.Subtype}
}

func (m MediaType) String() string {
	if m.Type == "" {
		return ""
	}
	return mime.FormatMediaType(strings.ToLower(m.Type+"/"+m.Subtype), m.Params)
}
