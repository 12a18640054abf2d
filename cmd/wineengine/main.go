// Command wineengine drives the wine harvest-year index engine from a
// command file, grounded on the teacher's flag-based CLI in
// cmd/main.go from the retrieval pack.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/talDoFlemis/wineengine/internal/bptree"
	"github.com/talDoFlemis/wineengine/internal/engine"
	"github.com/talDoFlemis/wineengine/internal/heapstore"
	"github.com/talDoFlemis/wineengine/internal/interpreter"
	"github.com/talDoFlemis/wineengine/internal/winesource"
	"gopkg.in/yaml.v3"
)

var (
	flagWineData    = flag.String("wine-data", "", "source catalog CSV (required)")
	flagPageSize    = flag.Int("page-size-in-bytes", 4096, "heap page size in bytes")
	flagMaxKeys     = flag.Int("max-keys-per-node", 4, "max keys per B+ tree node before split")
	flagHeapSize    = flag.Int64("heap-size-in-bytes", 40*1024*1024, "total heap file size in bytes")
	flagDataFrames  = flag.Int("amount-of-page-frames", 1, "resident data page frame count")
	flagIndexFrames = flag.Int("amount-of-index-frames", 1, "resident index node frame count")
	flagCommands    = flag.String("commands-file", "in.txt", "command file path")
	flagOut         = flag.String("out-file", "out.txt", "output file path")
	flagDataDir     = flag.String("data-dir", ".", "directory for heap.ygg/index.wine")
	flagDumpConfig  = flag.String("dump-config", "", "optional path to write a YAML run summary")
)

// runSummary is the optional YAML sidecar written by --dump-config.
type runSummary struct {
	HeapInstanceID  string `yaml:"heap_instance_id"`
	WineData        string `yaml:"wine_data"`
	PageSizeBytes   int    `yaml:"page_size_bytes"`
	MaxKeysPerNode  int    `yaml:"max_keys_per_node"`
	HeapSizeBytes   int64  `yaml:"heap_size_bytes"`
	DataFrames      int    `yaml:"data_frames"`
	IndexFrames     int    `yaml:"index_frames"`
	CommandsFile    string `yaml:"commands_file"`
	OutFile         string `yaml:"out_file"`
	RanAt           string `yaml:"ran_at"`
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("wineengine: %v", err)
	}
}

// run builds the engine and drives it against the configured command
// file. It is separated from main so tests can exercise the whole
// flag-to-output path without relying on log.Fatal for error reporting.
//
// --max-keys-per-node only sets the degree the engine is built with
// before the command file's header is read; runFromFiles parses that
// header first and the B+ tree's actual split degree follows it, not
// the flag, once the header is known.
func run() error {
	if *flagWineData == "" {
		return fmt.Errorf("--wine-data is required")
	}

	source, err := winesource.LoadCSV(*flagWineData)
	if err != nil {
		return err
	}

	heap, err := heapstore.Initialize(*flagDataDir, *flagPageSize, *flagHeapSize)
	if err != nil {
		return err
	}
	index, err := bptree.Initialize(*flagDataDir)
	if err != nil {
		return err
	}

	log.Printf("wineengine: heap instance %s ready (%d wines loaded)", heap.InstanceID(), source.Len())

	eng := engine.New(heap, index, *flagDataFrames, *flagIndexFrames, *flagMaxKeys)

	if err := runFromFiles(eng, source); err != nil {
		return err
	}

	if err := eng.Flush(); err != nil {
		return err
	}

	if *flagDumpConfig != "" {
		if err := dumpConfig(heap); err != nil {
			log.Printf("wineengine: dump-config: %v", err)
		}
	}
	return nil
}

func runFromFiles(eng *engine.Engine, source *winesource.Catalog) error {
	in, err := os.Open(*flagCommands)
	if err != nil {
		return fmt.Errorf("open commands file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(*flagOut)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	return interpreter.Run(in, out, eng, source)
}

func dumpConfig(heap *heapstore.Store) error {
	summary := runSummary{
		HeapInstanceID: heap.InstanceID().String(),
		WineData:       *flagWineData,
		PageSizeBytes:  *flagPageSize,
		MaxKeysPerNode: *flagMaxKeys,
		HeapSizeBytes:  *flagHeapSize,
		DataFrames:     *flagDataFrames,
		IndexFrames:    *flagIndexFrames,
		CommandsFile:   *flagCommands,
		OutFile:        *flagOut,
		RanAt:          time.Now().Format(time.RFC3339),
	}
	raw, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	return os.WriteFile(*flagDumpConfig, raw, 0o644)
}
