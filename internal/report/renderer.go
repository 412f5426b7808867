package report

import (
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/shared"
)

const (
	reportFilePermissionsConstant     = fs.FileMode(0o644)
	unsupportedFormatTemplateConstant = "unsupported report format: %s"
	encodeReportErrorTemplateConstant = "unable to encode report: %w"
	writeReportErrorTemplateConstant  = "unable to write report %s: %w"
)

// Format selects the report encoding.
type Format string

const (
	// FormatMarkdown renders a human-readable markdown document.
	FormatMarkdown Format = "markdown"
	// FormatYAML renders the report structure as YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat converts configuration text into a Format. Empty input selects markdown.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf(unsupportedFormatTemplateConstant, raw)
	}
}

// Renderer encodes bulk reports in a fixed format.
type Renderer struct {
	Format Format
}

// Render encodes the report.
func (renderer Renderer) Render(bulkReport bulkapply.BulkReport) ([]byte, error) {
	switch renderer.Format {
	case "", FormatMarkdown:
		return []byte(Render(bulkReport)), nil
	case FormatYAML:
		encoded, encodeError := yaml.Marshal(bulkReport)
		if encodeError != nil {
			return nil, fmt.Errorf(encodeReportErrorTemplateConstant, encodeError)
		}
		return encoded, nil
	default:
		return nil, fmt.Errorf(unsupportedFormatTemplateConstant, renderer.Format)
	}
}

// WriteFile renders the report and replaces path with it atomically.
func (renderer Renderer) WriteFile(fileSystem shared.FileSystem, path string, bulkReport bulkapply.BulkReport) error {
	content, renderError := renderer.Render(bulkReport)
	if renderError != nil {
		return renderError
	}
	if writeError := fileSystem.WriteFile(path, content, reportFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(writeReportErrorTemplateConstant, path, writeError)
	}
	return nil
}
