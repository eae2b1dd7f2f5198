package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pontopology/internal/metrics"
	"pontopology/internal/observability"
)

func newSnapshotCmd(o *rootOptions) *cobra.Command {
	var (
		format  string
		payload bool
		archive bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build one snapshot from the configured source and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), o.cfg, observability.GetLogger(), metrics.NewRegistry())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.refresher.Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			if archive {
				if a.workdir == nil {
					return errors.New("archive requested but no workdir is available")
				}
				sess, err := a.workdir.Archive(res.Snapshot, res.Collections, time.Now())
				if err != nil {
					return fmt.Errorf("archive: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "archived to", sess.Path)
			}

			var v any = res.Snapshot
			if payload {
				v = convertToPayload(res.Snapshot)
			}
			return encode(cmd.OutOrStdout(), format, v)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&payload, "payload", false, "print the canvas payload instead of the raw snapshot")
	cmd.Flags().BoolVar(&archive, "archive", false, "also archive the snapshot in the workdir")
	return cmd
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
