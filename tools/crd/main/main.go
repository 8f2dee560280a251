// Copyright (c) 2025 The chunkdb authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// crd is the chunkdb recording tool: it inspects and compacts recording
// files written by persist/fs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v2"

	"github.com/chunkdb/chunkdb/chunk"
	"github.com/chunkdb/chunkdb/instrument"
	"github.com/chunkdb/chunkdb/persist/fs"
	"github.com/chunkdb/chunkdb/storage"
)

var (
	configPath string
	outPath    string

	rootCmd = &cobra.Command{
		Use:   "crd",
		Short: "inspect and compact chunkdb recording files",
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect <recording>",
		Short: "print per-entity chunk, row and byte statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args[0])
		},
	}

	compactCmd = &cobra.Command{
		Use:   "compact <recording>",
		Short: "rewrite a recording with small adjacent chunks merged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(args[0])
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"yaml config file with store limits")
	compactCmd.Flags().StringVarP(&outPath, "out", "o", "",
		"output path (default: rewrite in place)")
	rootCmd.AddCommand(inspectCmd, compactCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadOptions(logger *zap.Logger) (storage.Options, error) {
	var cfg storage.Configuration
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	iopts := instrument.NewOptions().SetLogger(logger)
	return opts.SetInstrumentOptions(iopts), nil
}

func loadStore(path string, logger *zap.Logger) (storage.Store, error) {
	opts, err := loadOptions(logger)
	if err != nil {
		return nil, err
	}
	// Inserting while rebuilding must never merge or evict: the tool
	// operates on exactly the chunks in the file.
	opts = opts.SetCompactionEveryNumInserts(0).SetMaxRecordingBytes(0)

	chunks, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := storage.NewStore(opts)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if err := s.Insert(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func runInspect(path string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	s, err := loadStore(path, logger)
	if err != nil {
		return err
	}

	fmt.Printf("recording: %s\n", path)
	fmt.Printf("chunks:    %d\n", s.NumChunks())
	fmt.Printf("rows:      %d\n", s.NumRows())
	fmt.Printf("bytes:     %d\n", s.NumBytes())

	fmt.Println("timelines:")
	for _, tl := range s.Timelines() {
		fmt.Printf("  %s (%s)\n", tl.Name, tl.Kind)
	}

	fmt.Println("entities:")
	for _, entity := range s.Entities() {
		chunks := s.ChunksFor(entity)
		rows, bytes := 0, 0
		comps := make(map[string]struct{})
		for _, c := range chunks {
			rows += c.RowCount()
			bytes += c.NumBytes()
			for _, name := range c.Schema().Components() {
				comps[name] = struct{}{}
			}
		}
		fmt.Printf("  %s: %d chunks, %d rows, %d bytes, %d components\n",
			entity, len(chunks), rows, bytes, len(comps))
	}
	return nil
}

func runCompact(path string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	s, err := loadStore(path, logger)
	if err != nil {
		return err
	}
	before := s.NumChunks()
	res := s.Compact()
	logger.Info("compacted recording",
		zap.Int("chunksBefore", before),
		zap.Int("chunksAfter", s.NumChunks()),
		zap.Int("compactions", res.Compactions),
		zap.Int("chunksMerged", res.ChunksMerged),
		zap.Int("skipped", res.Skipped))

	var out []*chunk.Chunk
	for _, entity := range s.Entities() {
		out = append(out, s.ChunksFor(entity)...)
	}

	target := outPath
	if target == "" {
		target = path
	}
	if err := fs.WriteFile(target, out); err != nil {
		return err
	}
	logger.Info("wrote recording", zap.String("path", target), zap.Int("chunks", len(out)))
	return nil
}
