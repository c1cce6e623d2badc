package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonLineWriter emits one compact JSON document per line.
type jsonLineWriter struct {
	enc *json.Encoder
}

func newJSONLineWriter(w io.Writer) *jsonLineWriter {
	return &jsonLineWriter{enc: json.NewEncoder(w)}
}

func (w *jsonLineWriter) Write(v any) error {
	return w.enc.Encode(v)
}
