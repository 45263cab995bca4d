package codec

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// Converter writes reply payloads of the types it supports. Write receives
// the negotiated media type, which may still be a wildcard, and returns the
// concrete media type it produced.
type Converter interface {
	Name() string
	CanWrite(payload any, mediaType MediaType) bool
	Write(w io.Writer, payload any, mediaType MediaType) (MediaType, error)
}

const (
	ConverterBytes = "bytes"
	ConverterText  = "text"
	ConverterJSON  = "json"
)

type BytesConverter struct{}

func NewBytesConverter() BytesConverter {
	return BytesConverter{}
}

func (BytesConverter) Name() string { return ConverterBytes }

func (BytesConverter) CanWrite(payload any, _ MediaType) bool {
	_, ok := payload.([]byte)
	return ok
}

func (BytesConverter) Write(w io.Writer, payload any, mediaType MediaType) (MediaType, error) {
	body, ok := payload.([]byte)
	if !ok {
		return MediaType{}, fmt.Errorf("codec: bytes converter cannot write %T", payload)
	}
	if _, err := w.Write(body); err != nil {
		return MediaType{}, err
	}
	return concreteOr(mediaType, MediaOctetStream), nil
}

// TextConverter writes string payloads verbatim under any requested media
// type, falling back to text/plain for wildcards.
type TextConverter struct {
	Charset string
}

func NewTextConverter() TextConverter {
	return TextConverter{Charset: "utf-8"}
}

func (TextConverter) Name() string { return ConverterText }

func (TextConverter) CanWrite(payload any, _ MediaType) bool {
	switch payload.(type) {
	case string, fmt.Stringer:
		return true
	}
	return false
}

func (c TextConverter) Write(w io.Writer, payload any, mediaType MediaType) (MediaType, error) {
	var text string
	switch typed := payload.(type) {
	case string:
		text = typed
	case fmt.Stringer:
		text = typed.String()
	default:
		return MediaType{}, fmt.Errorf("codec: text converter cannot write %T", payload)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return MediaType{}, err
	}
	out := concreteOr(mediaType, MediaTextPlain)
	if c.Charset != "" && out.Type == "text" && out.Charset() == "" {
		out = out.WithoutParams()
		out.Params = map[string]string{"charset": c.Charset}
	}
	return out, nil
}

// JSONConverter encodes any payload for application/json and +json media.
type JSONConverter struct {
	api jsoniter.API
}

func NewJSONConverter() JSONConverter {
	return JSONConverter{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

func (JSONConverter) Name() string { return ConverterJSON }

func (JSONConverter) CanWrite(payload any, mediaType MediaType) bool {
	if payload == nil {
		return false
	}
	return jsonMedia(mediaType)
}

func (c JSONConverter) Write(w io.Writer, payload any, mediaType MediaType) (MediaType, error) {
	api := c.api
	if api == nil {
		api = jsoniter.ConfigCompatibleWithStandardLibrary
	}
	body, err := api.Marshal(payload)
	if err != nil {
		return MediaType{}, err
	}
	if _, err := w.Write(body); err != nil {
		return MediaType{}, err
	}
	return concreteOr(mediaType, MediaJSON), nil
}

func jsonMedia(mediaType MediaType) bool {
	if mediaType.IsWildcardType() {
		return true
	}
	if mediaType.Type != "application" {
		return false
	}
	if mediaType.Subtype == "json" || mediaType.Subtype == wildcard {
		return true
	}
	return MediaType{Type: "application", Subtype: "*+json"}.Includes(mediaType)
}

func concreteOr(mediaType MediaType, fallback MediaType) MediaType {
	if mediaType.IsConcrete() {
		return mediaType
	}
	return fallback
}
