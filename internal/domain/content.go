package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// FileRef is a client supplied reference into its document library. It is
// only echoed back to the model as a candidate for the "related" field.
type FileRef struct {
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
}

// Page is one base64 encoded page image as supplied by the client.
type Page string

// Decode returns the raw image bytes. A data URI prefix is tolerated.
func (p Page) Decode() ([]byte, error) {
	s := strings.TrimSpace(string(p))
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	return data, nil
}

// Content is the decrypted payload of an in-flight task. Exactly one
// implementation exists per task type.
type Content interface {
	TaskType() TaskType
	Library() []FileRef
}

// DocContent carries page images of a document to extract.
type DocContent struct {
	Pages   []Page
	FileLib []FileRef
}

func (DocContent) TaskType() TaskType    { return TaskTypeDoc }
func (c DocContent) Library() []FileRef { return c.FileLib }

// FormContent carries page images of a form to extract.
type FormContent struct {
	Pages   []Page
	FileLib []FileRef
}

func (FormContent) TaskType() TaskType    { return TaskTypeForm }
func (c FormContent) Library() []FileRef { return c.FileLib }

// FillContent carries a previously extracted form to fill from the library.
type FillContent struct {
	Form    json.RawMessage
	FileLib []FileRef
}

func (FillContent) TaskType() TaskType    { return TaskTypeFill }
func (c FillContent) Library() []FileRef { return c.FileLib }

type rawContent struct {
	ToProcess json.RawMessage `json:"to_process"`
	FileLib   []FileRef       `json:"file_lib"`
}

// ParseContent decodes the decrypted plaintext for the given task type.
// Structural problems are reported as ErrPayloadFormat.
func ParseContent(t TaskType, plaintext []byte) (Content, error) {
	var raw rawContent
	if err := json.Unmarshal(plaintext, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadFormat, err)
	}
	if len(bytes.TrimSpace(raw.ToProcess)) == 0 || bytes.Equal(bytes.TrimSpace(raw.ToProcess), []byte("null")) {
		return nil, fmt.Errorf("%w: to_process is required", ErrPayloadFormat)
	}
	switch t {
	case TaskTypeDoc, TaskTypeForm:
		var pages []Page
		if err := json.Unmarshal(raw.ToProcess, &pages); err != nil {
			return nil, fmt.Errorf("%w: to_process must be a list of images: %v", ErrPayloadFormat, err)
		}
		if t == TaskTypeDoc {
			return DocContent{Pages: pages, FileLib: raw.FileLib}, nil
		}
		return FormContent{Pages: pages, FileLib: raw.FileLib}, nil
	case TaskTypeFill:
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw.ToProcess, &probe); err != nil {
			return nil, fmt.Errorf("%w: to_process must be an object: %v", ErrPayloadFormat, err)
		}
		form := append(json.RawMessage(nil), raw.ToProcess...)
		return FillContent{Form: form, FileLib: raw.FileLib}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported task type %q", ErrPayloadFormat, t)
	}
}
