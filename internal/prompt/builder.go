// Package prompt assembles the completion prompt for each task type.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
)

// ErrConstruction is returned when a prompt cannot be assembled.
var ErrConstruction = errors.New("prompt: construction failed")

// Request carries the inputs of one prompt. Text is used by doc and form,
// Form by fill.
type Request struct {
	Type    domain.TaskType
	Text    string
	Form    json.RawMessage
	FileLib []domain.FileRef
}

// Build renders the prompt for req.
func Build(req Request) (string, error) {
	lib := req.FileLib
	if lib == nil {
		lib = []domain.FileRef{}
	}
	libJSON, err := json.Marshal(lib)
	if err != nil {
		return "", fmt.Errorf("%w: encode file library: %v", ErrConstruction, err)
	}

	sb := &strings.Builder{}
	switch req.Type {
	case domain.TaskTypeDoc, domain.TaskTypeForm:
		tmpl := docPrompt
		if req.Type == domain.TaskTypeForm {
			tmpl = formPrompt
		}
		sb.WriteString(tmpl)
		sb.WriteString("  <ocr_content>  ")
		sb.WriteString(req.Text)
		sb.WriteString("</ocr_content>  ")
	case domain.TaskTypeFill:
		if len(bytes.TrimSpace(req.Form)) == 0 {
			return "", fmt.Errorf("%w: form is empty", ErrConstruction)
		}
		var form bytes.Buffer
		if err := json.Compact(&form, req.Form); err != nil {
			return "", fmt.Errorf("%w: encode form: %v", ErrConstruction, err)
		}
		sb.WriteString(fillPrompt)
		sb.WriteString("  <form>  ")
		sb.Write(form.Bytes())
		sb.WriteString("</form>  ")
	default:
		return "", fmt.Errorf("%w: unknown task type %q", ErrConstruction, req.Type)
	}
	sb.WriteString("<file_lib>")
	sb.Write(libJSON)
	sb.WriteString("</file_lib>")
	return sb.String(), nil
}
