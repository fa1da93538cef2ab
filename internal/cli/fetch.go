package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/permstore/internal/cache"
	"github.com/roach88/permstore/internal/store"
)

// NewFetchCommand creates the fetch command group.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load remote content through the cache",
		Long: `Load remote content, serving it from the permanent store when cached
and fetching (then caching) it otherwise.`,
	}
	cmd.AddCommand(newFetchTextCommand(rootOpts))
	cmd.AddCommand(newFetchAudioCommand(rootOpts))
	return cmd
}

func newFetchTextCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "text <url>",
		Short: "Print a text document, fetching it on a cache miss",
		Example: `  permstore fetch text https://example.org/books/book1.txt
  PERMSTORE_TEXT_STORE=drafts permstore fetch text https://example.org/draft.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s := store.NewStrings(sess.cfg.TextStore, sess.cfg.LifecycleOptions(sess.logger))
			defer s.Close()

			fetcher := cache.NewHTTPFetcher(sess.cfg.HTTPOptions(sess.logger))
			loader := cache.NewTextLoader(s, fetcher, sess.logger)

			text, err := loader.Load(ctx, args[0])
			if err != nil {
				return sess.out.Fail(ExitFailure, ErrCodeFetch, "failed to load text", err)
			}
			return sess.out.Success(valueResult{Key: cache.TextKey(args[0]), Value: text})
		},
	}
}

// audioResult is the payload of fetch audio.
type audioResult struct {
	ID     string `json:"id"`
	Bytes  int    `json:"bytes"`
	Output string `json:"output"`
}

func (r audioResult) renderText(w io.Writer) {
	fmt.Fprintf(w, "%s: %d bytes written to %s\n", r.ID, r.Bytes, r.Output)
}

func newFetchAudioCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "audio <sentence-id>",
		Short: "Write a sentence's audio to a file, fetching it on a cache miss",
		Long: `Write the audio of one sentence (identified as B###C###S###) to a file.
The source address comes from the audio_url setting, where {id} is replaced
by the sentence identifier.`,
		Example: `  permstore fetch audio B001C000S000 -o s0.mp3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			id, err := cache.ParseSentenceID(args[0])
			if err != nil {
				return sess.out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid sentence id", err)
			}
			if sess.cfg.AudioURL == "" {
				return sess.out.Fail(ExitCommandError, ErrCodeConfig, "audio_url is not configured", nil)
			}
			if output == "" {
				output = id.String() + ".audio"
			}

			s := store.NewStrings(sess.cfg.AudioStore, sess.cfg.LifecycleOptions(sess.logger))
			defer s.Close()

			src := cache.HTTPAudioSource{
				Fetcher:  cache.NewHTTPFetcher(sess.cfg.HTTPOptions(sess.logger)),
				Template: sess.cfg.AudioURL,
			}
			loader := cache.NewAudioLoader(s, src, sess.logger)

			audio, err := loader.Load(ctx, id)
			if err != nil {
				return sess.out.Fail(ExitFailure, ErrCodeFetch, "failed to load audio", err)
			}
			if err := os.WriteFile(output, audio, 0o644); err != nil {
				return sess.out.Fail(ExitFailure, ErrCodeGeneric, "failed to write audio", err)
			}
			return sess.out.Success(audioResult{ID: id.String(), Bytes: len(audio), Output: output})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <sentence-id>.audio)")
	return cmd
}
