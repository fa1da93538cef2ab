package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/permstore/internal/store"
)

// storeOp describes one store operation exposed as a subcommand.
type storeOp struct {
	use     string
	short   string
	example string
	args    cobra.PositionalArgs
	run     func(ctx context.Context, cmd *cobra.Command, s *store.Store[string], args []string, out *OutputFormatter) error
}

func newKVCommands(rootOpts *RootOptions) []*cobra.Command {
	ops := []storeOp{
		{
			use:     "get <store> <key>",
			short:   "Print the value stored under a key",
			example: "  permstore get texts https://example.org/book1.txt",
			args:    cobra.ExactArgs(2),
			run:     runGet,
		},
		{
			use:   "set <store> <key> [value]",
			short: "Store a value under a key (reads stdin when value is omitted)",
			example: `  permstore set sounds B001C000S000 AAAA==
  base64 < clip.mp3 | permstore set sounds B001C000S001`,
			args: cobra.RangeArgs(2, 3),
			run:  runSet,
		},
		{
			use:   "has <store> <key>",
			short: "Report whether a key is present",
			args:  cobra.ExactArgs(2),
			run:   runHas,
		},
		{
			use:   "delete <store> <key>",
			short: "Remove a key (no error when absent)",
			args:  cobra.ExactArgs(2),
			run:   runDelete,
		},
		{
			use:   "clear <store>",
			short: "Remove every entry of a store",
			args:  cobra.ExactArgs(1),
			run:   runClear,
		},
		{
			use:   "keys <store>",
			short: "List keys in key order",
			args:  cobra.ExactArgs(1),
			run:   runKeys,
		},
		{
			use:   "values <store>",
			short: "List values in key order",
			args:  cobra.ExactArgs(1),
			run:   runValues,
		},
		{
			use:   "entries <store>",
			short: "List key/value pairs in key order",
			args:  cobra.ExactArgs(1),
			run:   runEntries,
		},
		{
			use:   "count <store>",
			short: "Print the number of entries",
			args:  cobra.ExactArgs(1),
			run:   runCount,
		},
	}

	cmds := make([]*cobra.Command, 0, len(ops))
	for _, op := range ops {
		op := op
		cmds = append(cmds, &cobra.Command{
			Use:           op.use,
			Short:         op.short,
			Example:       op.example,
			Args:          op.args,
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(rootOpts, cmd, args[0], func(ctx context.Context, s *store.Store[string], out *OutputFormatter) error {
					return op.run(ctx, cmd, s, args[1:], out)
				})
			},
		})
	}
	return cmds
}

// withStore opens the named store, waits for it to be usable and runs fn.
func withStore(rootOpts *RootOptions, cmd *cobra.Command, name string, fn func(ctx context.Context, s *store.Store[string], out *OutputFormatter) error) error {
	sess, err := newSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	s := store.NewStrings(name, sess.cfg.LifecycleOptions(sess.logger))
	defer s.Close()

	// Reads degrade to empty results, so surface initialization failures here.
	if err := s.Ready(ctx); err != nil {
		return sess.out.Fail(ExitCommandError, errorCode(err, ErrCodeGeneric),
			fmt.Sprintf("store %q is unavailable", name), err)
	}
	sess.out.VerboseLog("Opened store %s", name)

	return fn(ctx, s, sess.out)
}

// valueResult is the payload of get.
type valueResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r valueResult) renderText(w io.Writer) {
	fmt.Fprintln(w, r.Value)
}

// presenceResult is the payload of has.
type presenceResult struct {
	Key     string `json:"key"`
	Present bool   `json:"present"`
}

func (r presenceResult) renderText(w io.Writer) {
	fmt.Fprintln(w, r.Present)
}

// mutationResult is the payload of set, delete and clear.
type mutationResult struct {
	Op    string `json:"op"`
	Store string `json:"store"`
	Key   string `json:"key,omitempty"`
}

func (r mutationResult) renderText(w io.Writer) {
	fmt.Fprintln(w, "ok")
}

// countResult is the payload of count.
type countResult struct {
	Store string `json:"store"`
	Count int    `json:"count"`
}

func (r countResult) renderText(w io.Writer) {
	fmt.Fprintln(w, r.Count)
}

// lineList prints one item per line.
type lineList []string

func (l lineList) renderText(w io.Writer) {
	for _, item := range l {
		fmt.Fprintln(w, item)
	}
}

// entryList prints key<TAB>value per line.
type entryList []store.Entry[string]

func (l entryList) renderText(w io.Writer) {
	for _, e := range l {
		fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
	}
}

func runGet(ctx context.Context, _ *cobra.Command, s *store.Store[string], args []string, out *OutputFormatter) error {
	key := args[0]
	value, found := s.Get(ctx, key)
	if !found {
		return out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("key %q not found in %s", key, s.Name()), nil)
	}
	return out.Success(valueResult{Key: key, Value: value})
}

func runSet(ctx context.Context, cmd *cobra.Command, s *store.Store[string], args []string, out *OutputFormatter) error {
	key := args[0]

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "failed to read value from stdin", err)
		}
		value = strings.TrimSuffix(string(data), "\n")
	}

	if err := s.Set(ctx, key, value); err != nil {
		return out.Fail(ExitFailure, errorCode(err, ErrCodeWrite), fmt.Sprintf("failed to set %q", key), err)
	}
	out.VerboseLog("Stored %d bytes under %s", len(value), key)
	return out.Success(mutationResult{Op: "set", Store: s.Name(), Key: key})
}

func runHas(ctx context.Context, _ *cobra.Command, s *store.Store[string], args []string, out *OutputFormatter) error {
	return out.Success(presenceResult{Key: args[0], Present: s.Has(ctx, args[0])})
}

func runDelete(ctx context.Context, _ *cobra.Command, s *store.Store[string], args []string, out *OutputFormatter) error {
	s.Delete(ctx, args[0])
	return out.Success(mutationResult{Op: "delete", Store: s.Name(), Key: args[0]})
}

func runClear(ctx context.Context, _ *cobra.Command, s *store.Store[string], _ []string, out *OutputFormatter) error {
	s.Clear(ctx)
	return out.Success(mutationResult{Op: "clear", Store: s.Name()})
}

func runKeys(ctx context.Context, _ *cobra.Command, s *store.Store[string], _ []string, out *OutputFormatter) error {
	return out.Success(lineList(s.Keys(ctx)))
}

func runValues(ctx context.Context, _ *cobra.Command, s *store.Store[string], _ []string, out *OutputFormatter) error {
	return out.Success(lineList(s.Values(ctx)))
}

func runEntries(ctx context.Context, _ *cobra.Command, s *store.Store[string], _ []string, out *OutputFormatter) error {
	return out.Success(entryList(s.Entries(ctx)))
}

func runCount(ctx context.Context, _ *cobra.Command, s *store.Store[string], _ []string, out *OutputFormatter) error {
	return out.Success(countResult{Store: s.Name(), Count: s.Count(ctx)})
}
