package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stockmeta/internal/api"
	"stockmeta/internal/config"
	"stockmeta/internal/fileutil"
	"stockmeta/internal/queue"
	"stockmeta/internal/textutil"
)

const (
	nameWidth     = 32
	titleWidth    = 48
	keywordsWidth = 60
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResultFile(path string, result api.RunResult) error {
	target, err := config.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := fileutil.WriteFileAtomic(target, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func renderResults(items []queue.Item) string {
	headers := []string{"#", "File", "Status", "Title", "Keywords"}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		title, keywords := "", ""
		if item.Metadata != nil {
			title = item.Metadata.Title
			keywords = strconv.Itoa(len(item.Metadata.Keywords)) + ": " + strings.Join(item.Metadata.Keywords, ", ")
		} else if item.ErrorMessage != "" {
			title = item.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			textutil.Truncate(item.Name, nameWidth),
			item.Status.Label(),
			textutil.Truncate(title, titleWidth),
			textutil.Truncate(keywords, keywordsWidth),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft})
}
