package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload type discriminators on the wire.
const (
	PayloadText      = 1
	PayloadImage     = 2
	PayloadFile      = 3
	PayloadMixed     = 12
	PayloadCommand   = 99
	PayloadAILoading = 100
)

// IsSystemPayloadType reports whether t falls in the system message range.
func IsSystemPayloadType(t int) bool { return t >= 1000 && t <= 2000 }

// ImageDescriptor describes an inline image.
type ImageDescriptor struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FileDescriptor is the canonical attachment shape, shared by the file
// payload and the mixed payload's file member.
type FileDescriptor struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// SystemExtra is one positional substitution entry for a system message.
type SystemExtra struct {
	UID  string `json:"uid,omitempty"`
	Name string `json:"name,omitempty"`
}

// MessagePayload is the discriminated message body. Which fields are
// meaningful depends on Type; use the constructors to build well-formed
// values and DecodePayload at the wire boundary.
type MessagePayload struct {
	Type    int    `json:"type"`
	Content string `json:"content,omitempty"`

	// Image (type 2)
	URL    string `json:"url,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// File (type 3)
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`

	// Mixed (type 12)
	Images []ImageDescriptor `json:"images,omitempty"`
	File   *FileDescriptor   `json:"file,omitempty"`

	// Command (type 99)
	Cmd   string         `json:"cmd,omitempty"`
	Param map[string]any `json:"param,omitempty"`

	// System (type 1000-2000)
	Extra []SystemExtra `json:"extra,omitempty"`
}

// TextPayload builds a plain text payload.
func TextPayload(content string) MessagePayload {
	return MessagePayload{Type: PayloadText, Content: content}
}

// ImagePayload builds an image payload.
func ImagePayload(url string, width, height int) MessagePayload {
	return MessagePayload{Type: PayloadImage, URL: url, Width: width, Height: height}
}

// FilePayload builds a file payload from the canonical descriptor.
func FilePayload(content string, fd FileDescriptor) MessagePayload {
	return MessagePayload{Type: PayloadFile, Content: content, URL: fd.URL, Name: fd.Name, Size: fd.Size}
}

// rawPayload mirrors every field any known payload type can carry.
type rawPayload struct {
	Type    json.RawMessage   `json:"type"`
	Content string            `json:"content"`
	URL     string            `json:"url"`
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Name    string            `json:"name"`
	Size    int64             `json:"size"`
	Images  []ImageDescriptor `json:"images"`
	File    *FileDescriptor   `json:"file"`
	Cmd     string            `json:"cmd"`
	Param   map[string]any    `json:"param"`
	Extra   []SystemExtra     `json:"extra"`
}

// DecodePayload converts wire JSON into a MessagePayload. Unrecognized or
// malformed shapes fall back to a text payload holding the best available
// content rather than failing delivery.
func DecodePayload(data []byte) MessagePayload {
	if len(data) == 0 {
		return TextPayload("")
	}

	// Bare JSON string: treat as text.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return TextPayload(s)
	}

	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return TextPayload(string(data))
	}

	var t int
	if err := json.Unmarshal(raw.Type, &t); err != nil {
		return fallbackText(raw, data)
	}

	switch {
	case t == PayloadText && raw.Content != "":
		return TextPayload(raw.Content)

	case t == PayloadImage && raw.URL != "" && raw.Width > 0 && raw.Height > 0:
		return ImagePayload(raw.URL, raw.Width, raw.Height)

	case t == PayloadFile && raw.URL != "" && raw.Name != "":
		content := raw.Content
		if content == "" {
			content = "[file]"
		}
		return FilePayload(content, FileDescriptor{URL: raw.URL, Name: raw.Name, Size: raw.Size})

	case t == PayloadMixed && raw.Content != "":
		images := make([]ImageDescriptor, 0, len(raw.Images))
		for _, img := range raw.Images {
			if img.URL != "" && img.Width > 0 && img.Height > 0 {
				images = append(images, img)
			}
		}
		p := MessagePayload{Type: PayloadMixed, Content: raw.Content, Images: images}
		if raw.File != nil && raw.File.URL != "" && raw.File.Name != "" {
			p.File = raw.File
		}
		return p

	case t == PayloadCommand && raw.Cmd != "":
		param := raw.Param
		if param == nil {
			param = map[string]any{}
		}
		return MessagePayload{Type: PayloadCommand, Cmd: raw.Cmd, Param: param}

	case t == PayloadAILoading:
		return MessagePayload{Type: PayloadAILoading}

	case IsSystemPayloadType(t) && raw.Content != "":
		return MessagePayload{Type: t, Content: raw.Content, Extra: raw.Extra}
	}

	return fallbackText(raw, data)
}

func fallbackText(raw rawPayload, data []byte) MessagePayload {
	if raw.Content != "" {
		return TextPayload(raw.Content)
	}
	return TextPayload(string(data))
}

// FormatSystemContent substitutes {0}, {1}... placeholders in a system
// message with the extra entries' name (or uid when the name is empty).
func FormatSystemContent(content string, extra []SystemExtra) string {
	result := content
	for i, e := range extra {
		name := e.Name
		if name == "" {
			name = e.UID
		}
		result = strings.ReplaceAll(result, fmt.Sprintf("{%d}", i), name)
	}
	return result
}
