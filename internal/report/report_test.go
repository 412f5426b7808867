package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/filesystem"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/report"
)

func sampleReport(dryRun bool) bulkapply.BulkReport {
	mode := shared.ApplyModeApply
	if dryRun {
		mode = shared.ApplyModeDryRun
	}
	return bulkapply.BulkReport{
		RunID:       "5f0c4d7e-2b1a-4c57-9a39-0d4c9c1e7b11",
		Mode:        mode,
		DryRun:      dryRun,
		GeneratedAt: time.Date(2026, time.April, 1, 12, 30, 0, 0, time.UTC),
		Outcomes: []bulkapply.ApplyOutcome{
			{
				RepositoryPath: "/w/proj",
				Status:         bulkapply.StatusApplied,
				ChosenAccount:  "work",
				Reason:         bulkapply.ReasonApplied,
				Actions: []binding.Action{
					{Kind: binding.ActionSetUserEmail, Target: "user.email", To: "dev@acme.example"},
				},
			},
			{RepositoryPath: "/w/tie", Status: bulkapply.StatusSkipped, Reason: bulkapply.ReasonAmbiguousSuggestion},
			{RepositoryPath: "/w/broken", Status: bulkapply.StatusFailed, ChosenAccount: "work", Reason: "unable to write user.email in /w/broken: permission denied"},
		},
	}
}

func TestRenderMarkdown(testInstance *testing.T) {
	rendered := report.Render(sampleReport(false))

	require.NotContains(testInstance, rendered, "DRY RUN")
	require.Contains(testInstance, rendered, "- Run: `5f0c4d7e-2b1a-4c57-9a39-0d4c9c1e7b11`")
	require.Contains(testInstance, rendered, "- Mode: apply")
	require.Contains(testInstance, rendered, "- Generated: 2026-04-01T12:30:00Z")
	require.Contains(testInstance, rendered, "| Applied | 1 |\n| Skipped | 1 |\n| Failed | 1 |\n| Total | 3 |")
	require.Contains(testInstance, rendered, "## Applied (1)\n\n- `/w/proj`: account `work` (applied)\n  - set_user_email user.email: (unset) -> dev@acme.example\n")
	require.Contains(testInstance, rendered, "## Skipped (1)\n\n- `/w/tie`: ambiguous suggestion\n")
	require.Contains(testInstance, rendered, "## Failed (1)\n\n- `/w/broken`: account `work`: unable to write user.email in /w/broken: permission denied\n")

	appliedIndex := strings.Index(rendered, "## Applied")
	skippedIndex := strings.Index(rendered, "## Skipped")
	failedIndex := strings.Index(rendered, "## Failed")
	require.Less(testInstance, appliedIndex, skippedIndex)
	require.Less(testInstance, skippedIndex, failedIndex)
}

func TestRenderMarkdownMarksDryRun(testInstance *testing.T) {
	rendered := report.Render(sampleReport(true))

	require.True(testInstance, strings.HasPrefix(rendered, "# gitid identity report\n\n> **DRY RUN:**"))
	require.Contains(testInstance, rendered, "## Would apply (1)")
	require.Contains(testInstance, rendered, "- Mode: dry-run")
}

func TestRenderMarkdownEmptySections(testInstance *testing.T) {
	emptyReport := bulkapply.BulkReport{RunID: "empty", Mode: shared.ApplyModeApply}
	rendered := report.Render(emptyReport)
	require.Equal(testInstance, 3, strings.Count(rendered, "_None._"))
	require.Contains(testInstance, rendered, "| Total | 0 |")
}

func TestRendererYAML(testInstance *testing.T) {
	encoded, renderError := report.Renderer{Format: report.FormatYAML}.Render(sampleReport(true))
	require.NoError(testInstance, renderError)

	var decoded map[string]any
	require.NoError(testInstance, yaml.Unmarshal(encoded, &decoded))
	require.Equal(testInstance, "dry-run", decoded["mode"])
	require.Equal(testInstance, true, decoded["dry_run"])
	outcomes, isList := decoded["outcomes"].([]any)
	require.True(testInstance, isList)
	require.Len(testInstance, outcomes, 3)
	firstOutcome := outcomes[0].(map[string]any)
	require.Equal(testInstance, "applied", firstOutcome["status"])
	require.Equal(testInstance, "work", firstOutcome["chosen_account"])
}

func TestParseFormat(testInstance *testing.T) {
	testCases := []struct {
		input         string
		expected      report.Format
		expectedError bool
	}{
		{input: "", expected: report.FormatMarkdown},
		{input: "Markdown", expected: report.FormatMarkdown},
		{input: " yaml ", expected: report.FormatYAML},
		{input: "xml", expectedError: true},
	}
	for _, testCase := range testCases {
		format, parseError := report.ParseFormat(testCase.input)
		if testCase.expectedError {
			require.Error(testInstance, parseError)
			continue
		}
		require.NoError(testInstance, parseError)
		require.Equal(testInstance, testCase.expected, format)
	}
}

func TestRendererWriteFile(testInstance *testing.T) {
	reportPath := filepath.Join(testInstance.TempDir(), "reports", "identity.md")
	renderer := report.Renderer{Format: report.FormatMarkdown}

	require.NoError(testInstance, renderer.WriteFile(filesystem.OSFileSystem{}, reportPath, sampleReport(false)))
	content, readError := os.ReadFile(reportPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, report.Render(sampleReport(false)), string(content))

	unsupported := report.Renderer{Format: "xml"}
	require.Error(testInstance, unsupported.WriteFile(filesystem.OSFileSystem{}, reportPath, sampleReport(false)))
}
