package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/dactilo/internal/gesture"
	"github.com/ayusman/dactilo/internal/store"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect and manage the training dataset",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show sample counts per label",
		Args:  cobra.NoArgs,
		RunE:  runDatasetInfo,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete every stored sample",
		Args:  cobra.NoArgs,
		RunE:  runDatasetReset,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Write the dataset as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDatasetExport,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the dataset with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatasetImport,
	})
	return cmd
}

func runDatasetInfo(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, sess, err := openDataset(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	printCounts(cmd.OutOrStdout(), sess.Counts())
	return nil
}

func printCounts(out io.Writer, counts map[string]int) {
	labels := make([]string, 0, len(counts))
	total := 0
	for label, n := range counts {
		labels = append(labels, label)
		total += n
	}
	sort.Strings(labels)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSAMPLES")
	for _, label := range labels {
		fmt.Fprintf(tw, "%s\t%d\n", label, counts[label])
	}
	tw.Flush()
	fmt.Fprintf(out, "%d samples, %d labels\n", total, len(labels))
}

func runDatasetReset(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, sess, err := openDataset(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := sess.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Dataset cleared")
	return nil
}

func runDatasetExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, sess, err := openDataset(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	samples := sess.Samples()
	if samples == nil {
		samples = []gesture.Sample{}
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	data = append(data, '\n')

	if len(args) == 0 {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d samples to %s\n", len(samples), args[0])
	return nil
}

func runDatasetImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var samples []gesture.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return fmt.Errorf("failed to decode %s: %w", args[0], err)
	}
	for i, s := range samples {
		if s.Label == "" || len(s.Vector) == 0 {
			return fmt.Errorf("sample %d: label and vector are required", i)
		}
	}

	st, sess, err := openDataset(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sess.Replace(samples)
	if err := sess.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d samples\n", len(samples))
	return nil
}

func newHistoryCmd() *cobra.Command {
	var filter store.HistoryFilter
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recognized words and shortcuts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.New(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer st.Close()

			if clearAll {
				if err := st.History().Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			}

			entries, err := st.History().List(filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tKIND\tTEXT\tSESSION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Text, e.SessionID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Kind, "kind", "", "only show word or shortcut entries")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "only show one session")
	cmd.Flags().IntVar(&filter.Limit, "limit", store.DefaultHistoryLimit, "maximum number of entries")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all history")
	return cmd
}
