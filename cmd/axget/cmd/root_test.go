package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/axget/internal/domain/release"
	"github.com/oshokin/axget/internal/version"
)

func TestRootCmd_ArgumentCount(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{}, {"8", "1"}, {"8", "1", "4", "5"}} {
		rootCmd := newRootCmd()
		rootCmd.SetOut(new(bytes.Buffer))
		rootCmd.SetErr(new(bytes.Buffer))
		rootCmd.SetArgs(args)

		err := rootCmd.Execute()
		require.ErrorIs(t, err, release.ErrInvalidVersion, args)
		require.Equal(t, release.ExitInvalidInput, release.ExitCode(err))
	}
}

func TestRootCmd_Flags(t *testing.T) {
	t.Parallel()

	rootCmd := newRootCmd()

	for _, name := range []string{"src", "out", "brand-file", "config", "owner", "group", "no-clobber", "keep-archive", "log-level"} {
		require.NotNil(t, rootCmd.Flags().Lookup(name), name)
	}

	require.Equal(t, "s", rootCmd.Flags().Lookup("src").Shorthand)
	require.Equal(t, "o", rootCmd.Flags().Lookup("out").Shorthand)
	require.Equal(t, "b", rootCmd.Flags().Lookup("brand-file").Shorthand)
	require.Equal(t, "c", rootCmd.Flags().Lookup("config").Shorthand)
}

func TestRootCmd_Version(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	require.Equal(t, version.Full()+"\n", out.String())
}

func TestRootCmd_InvalidVersionNeverDownloads(t *testing.T) {
	t.Parallel()

	rootCmd := newRootCmd()
	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"--out", t.TempDir(), "8", "one", "4"})

	err := rootCmd.Execute()
	require.ErrorIs(t, err, release.ErrInvalidVersion)
}
