// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cil "github.com/saferwall/cil"
	"github.com/saferwall/cil/log"
)

var (
	offset  uint32
	verbose bool

	wantHeader  bool
	wantStreams bool
	wantTables  bool
	wantTypes   bool
)

func main() {
	root := &cobra.Command{
		Use:   "cildump",
		Short: "Dump CLI metadata directories",
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Dump the metadata directory of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(args[0])
		},
	}
	dumpCmd.Flags().Uint32Var(&offset, "offset", 0,
		"file offset of the metadata root")
	dumpCmd.Flags().BoolVar(&verbose, "verbose", false,
		"log at debug level")
	dumpCmd.Flags().BoolVar(&wantHeader, "header", false,
		"dump the storage header")
	dumpCmd.Flags().BoolVar(&wantStreams, "streams", false,
		"dump the stream headers")
	dumpCmd.Flags().BoolVar(&wantTables, "tables", false,
		"dump table row counts")
	dumpCmd.Flags().BoolVar(&wantTypes, "types", false,
		"dump type definitions")

	root.AddCommand(dumpCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func dump(filename string) error {
	level := log.LevelInfo
	if verbose {
		level = log.LevelDebug
	}
	logger := log.NewFilter(log.NewStdLogger(os.Stdout),
		log.FilterLevel(level))

	file, err := cil.New(filename, &cil.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer file.Close()

	if err := file.ParseMetadata(offset); err != nil {
		return err
	}
	md := file.Metadata

	if wantHeader {
		fmt.Printf("Signature:  0x%08X\n", md.Header.Signature)
		fmt.Printf("Version:    %s (%d.%d)\n", md.Header.Version,
			md.Header.MajorVersion, md.Header.MinorVersion)
		fmt.Printf("Streams:    %d\n", md.Header.Streams)
		fmt.Printf("HeapSizes:  0x%02X\n", md.TablesHeader.HeapSizes)
		fmt.Printf("MaskValid:  0x%016X\n", md.TablesHeader.MaskValid)
		fmt.Printf("Sorted:     0x%016X\n", md.TablesHeader.Sorted)
	}

	if wantStreams {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tOFFSET\tSIZE")
		for _, sh := range md.StreamHeaders {
			fmt.Fprintf(w, "%s\t0x%X\t0x%X\n", sh.Name, sh.Offset, sh.Size)
		}
		w.Flush()
	}

	if wantTables {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tTABLE\tROWS")
		for i := cil.TableIndex(0); i < cil.TableCount; i++ {
			if count := md.RowCount(i); count > 0 {
				fmt.Fprintf(w, "0x%02X\t%s\t%d\n", uint8(i), i, count)
			}
		}
		w.Flush()
	}

	if wantTypes {
		module, err := file.Module()
		if err != nil {
			return err
		}
		fmt.Printf("module %s\n", module.Name())
		if a := module.Assembly(); a != nil {
			fmt.Printf("assembly %s\n", a.FullName())
		}
		for _, t := range module.AllTypes() {
			fmt.Printf("  %s (%d fields, %d methods)\n",
				t.FullName(), len(t.Fields()), len(t.Methods()))
		}
	}
	return nil
}
