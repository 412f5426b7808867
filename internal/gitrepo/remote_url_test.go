package gitrepo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitid/internal/gitrepo"
)

func TestParseRemoteURL(testInstance *testing.T) {
	testCases := []struct {
		name              string
		input             string
		expectedHost      string
		expectedOwnerPath string
		expectedOwner     string
		expectError       bool
	}{
		{
			name:              "scp_like_with_suffix",
			input:             "git@github.com:acme/widgets.git",
			expectedHost:      "github.com",
			expectedOwnerPath: "acme/widgets",
			expectedOwner:     "acme",
		},
		{
			name:              "scp_like_alias_host",
			input:             "git@github.com-work_bot:acme/widgets.git",
			expectedHost:      "github.com-work_bot",
			expectedOwnerPath: "acme/widgets",
			expectedOwner:     "acme",
		},
		{
			name:              "https_without_suffix",
			input:             "https://gitlab.com/group/subgroup/project",
			expectedHost:      "gitlab.com",
			expectedOwnerPath: "group/subgroup/project",
			expectedOwner:     "group",
		},
		{
			name:              "ssh_scheme_with_port",
			input:             "ssh://git@bitbucket.org:7999/team/repo.git",
			expectedHost:      "bitbucket.org",
			expectedOwnerPath: "team/repo",
			expectedOwner:     "team",
		},
		{
			name:        "empty",
			input:       "   ",
			expectError: true,
		},
		{
			name:        "local_path",
			input:       "/srv/git/project.git",
			expectError: true,
		},
		{
			name:        "host_without_path",
			input:       "https://github.com/",
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subtest *testing.T) {
			remote, parseError := gitrepo.ParseRemoteURL(testCase.input)
			if testCase.expectError {
				require.Error(subtest, parseError)
				require.ErrorAs(subtest, parseError, &gitrepo.RemoteURLParseError{})
				return
			}
			require.NoError(subtest, parseError)
			require.Equal(subtest, testCase.expectedHost, remote.Host)
			require.Equal(subtest, testCase.expectedOwnerPath, remote.OwnerPath)
			require.Equal(subtest, testCase.expectedOwner, remote.Owner())
		})
	}
}

func TestFormatAliasRemoteURL(testInstance *testing.T) {
	formatted, formatError := gitrepo.FormatAliasRemoteURL("github.com-work", "/acme/widgets.git")
	require.NoError(testInstance, formatError)
	require.Equal(testInstance, "git@github.com-work:acme/widgets.git", formatted)

	reparsed, parseError := gitrepo.ParseRemoteURL(formatted)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, "github.com-work", reparsed.Host)
	require.Equal(testInstance, "acme/widgets", reparsed.OwnerPath)

	_, missingAliasError := gitrepo.FormatAliasRemoteURL(" ", "acme/widgets")
	require.Error(testInstance, missingAliasError)

	_, missingPathError := gitrepo.FormatAliasRemoteURL("github.com-work", ".git")
	require.Error(testInstance, missingPathError)
}
