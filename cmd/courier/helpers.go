package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// writeJSON renders v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid request id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseHeaderFlags splits repeated --header values of the form
// "Name: value" into a header map.
func parseHeaderFlags(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(values))
	for _, raw := range values {
		name, value, found := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid header %q (expected \"Name: value\")", raw)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// resolveBody returns the request body from --body or --body-file,
// rejecting the combination of both.
func resolveBody(body, bodyFile string) ([]byte, error) {
	if body != "" && bodyFile != "" {
		return nil, fmt.Errorf("--body and --body-file are mutually exclusive")
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return data, nil
	}
	if body != "" {
		return []byte(body), nil
	}
	return nil, nil
}
