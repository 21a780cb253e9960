// gbhtool is a CLI utility for inspecting GBH style and map files.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/gbhdata/internal/assets"
	"github.com/Faultbox/gbhdata/internal/config"
	"github.com/Faultbox/gbhdata/internal/logger"
	"github.com/Faultbox/gbhdata/pkg/formats"
)

func main() {
	config.ParseFlags()
	args := config.Args()

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	switch command {
	case "maps":
		cmdMaps(cfg)
	case "style", "sty":
		cmdStyle(cfg, args)
	case "map", "gmp":
		cmdMap(cfg, args)
	case "tile":
		cmdTile(cfg, args)
	case "level":
		cmdLevel(cfg, args)
	case "init-config":
		cmdInitConfig(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gbhtool - GBH style and map utility

Usage:
  gbhtool [flags] <command> [options]

Commands:
  maps                               List configured maps
  style <file.sty>                   Show style information
  map <file.gmp>                     Show map information
  tile <file.sty> <id> <out>         Write a tile as .png or .bmp
  level [id]                         Load a configured map with its style
  init-config [path]                 Write the current config to a file

Flags:
  -config <path>   Config file
  -data <dir>      Game data directory
  -map <id>        Map loaded by "level" when no id is given
  -strict          Fail on unknown chunks and size mismatches
  -debug           Enable debug logging
  -log <path>      Write logs to a file

Examples:
  gbhtool style data/wil.sty
  gbhtool -strict map data/wil.gmp
  gbhtool tile data/wil.sty 12 tile12.png
  gbhtool -data ./gta2/data level ste`)
}

// fatal prints to stderr and exits. os.Exit skips deferred calls, so the
// logger is flushed here.
func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	logger.Sync()
	os.Exit(1)
}

func decodeOptions(cfg *config.Config) []formats.Option {
	opts := []formats.Option{formats.WithLogger(logger.Named("formats"))}
	if cfg.Decode.Strict {
		opts = append(opts, formats.WithStrict())
	}
	return opts
}

func cmdMaps(cfg *config.Config) {
	fmt.Printf("Data: %s\n\n", cfg.Data.BasePath)
	for _, e := range cfg.Data.Maps {
		marker := " "
		if e.ID == cfg.Data.SelectedMap {
			marker = "*"
		}
		fmt.Printf("%s %-8s %-16s %s\n", marker, e.ID, e.Map, e.Style)
	}
}

func cmdStyle(cfg *config.Config, args []string) {
	if len(args) < 1 {
		fatal("Usage: gbhtool style <file.sty>")
	}

	style, err := formats.ParseSTYFile(args[0], decodeOptions(cfg)...)
	if err != nil {
		fatal("Error: %v", err)
	}
	printStyle(args[0], style)
}

func printStyle(name string, style *formats.Style) {
	fmt.Printf("File:      %s\n", name)
	fmt.Printf("Header:    %s\n", style.Header)
	fmt.Printf("Tiles:     %d (%d pages)\n", len(style.Tiles), len(style.Tiles)/formats.TilesPerPage)
	fmt.Printf("Palettes:  %d physical, %d index entries\n", len(style.PhysicalPalettes), len(style.PaletteIndex))
	if style.HasPaletteBase {
		b := style.PaletteBase
		fmt.Printf("Bases:     tile=%d sprite=%d car=%d ped=%d codeobj=%d mapobj=%d user=%d font=%d\n",
			b.Tile, b.Sprite, b.CarRemap, b.PedRemap, b.CodeObjRemap, b.MapObjRemap, b.UserRemap, b.FontRemap)
	}
	printTermination(style.Termination)
}

func cmdMap(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	slopes := fs.Bool("slopes", false, "Print slope histogram")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("Usage: gbhtool map [-slopes] <file.gmp>")
	}

	m, err := formats.ParseGMPFile(fs.Arg(0), decodeOptions(cfg)...)
	if err != nil {
		fatal("Error: %v", err)
	}
	printMap(fs.Arg(0), m, *slopes)
}

func printMap(name string, m *formats.Map, slopes bool) {
	fmt.Printf("File:      %s\n", name)
	fmt.Printf("Header:    %s\n", m.Header)
	if m.Compressed != nil {
		fmt.Printf("Columns:   %d words\n", len(m.Compressed.ColumnInfos))
		fmt.Printf("Blocks:    %d unique\n", len(m.Compressed.BlockInfos))
	} else {
		fmt.Println("Blocks:    uncompressed")
	}

	solid := 0
	tallest := 0
	slopeCount := make(map[formats.SlopeKind]int)
	for y := 0; y < formats.MapHeight; y++ {
		for x := 0; x < formats.MapWidth; x++ {
			if h := m.ColumnHeight(x, y); h > tallest {
				tallest = h
			}
			for z := 0; z < formats.MapDepth; z++ {
				b := m.Blocks.At(x, y, z)
				if b.Lid.Visible() || b.Left.Visible() || b.Right.Visible() || b.Top.Visible() || b.Bottom.Visible() {
					solid++
				}
				if b.Slope.Kind != formats.SlopeNone {
					slopeCount[b.Slope.Kind]++
				}
			}
		}
	}
	fmt.Printf("Visible:   %d cells\n", solid)
	fmt.Printf("Tallest:   %d levels\n", tallest)
	printTermination(m.Termination)

	if !slopes {
		return
	}

	type slopeStat struct {
		kind  formats.SlopeKind
		count int
	}
	var stats []slopeStat
	for kind, count := range slopeCount {
		stats = append(stats, slopeStat{kind, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].count > stats[j].count
	})

	fmt.Println()
	fmt.Println("Slopes:")
	for _, s := range stats {
		fmt.Printf("  %-20s %d\n", s.kind, s.count)
	}
}

func printTermination(t formats.Termination) {
	if t.Kind == formats.UnknownTag {
		fmt.Printf("Ended:     unknown chunk %q at offset %d\n", t.Tag, t.Offset)
		return
	}
	fmt.Printf("Ended:     %s\n", t.Kind)
}

func cmdTile(cfg *config.Config, args []string) {
	if len(args) < 3 {
		fatal("Usage: gbhtool tile <file.sty> <id> <out.png|out.bmp>")
	}

	id, err := strconv.Atoi(args[1])
	if err != nil {
		fatal("Invalid tile id: %s", args[1])
	}

	style, err := formats.ParseSTYFile(args[0], decodeOptions(cfg)...)
	if err != nil {
		fatal("Error: %v", err)
	}

	img, err := style.TileImage(id)
	if err != nil {
		fatal("Error: %v", err)
	}

	if err := writeImage(args[2], img); err != nil {
		fatal("Error writing image: %v", err)
	}
	fmt.Printf("Wrote: %s (tile %d)\n", args[2], id)
}

func writeImage(path string, img image.Image) error {
	encode := png.Encode
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png", "":
	case ".bmp":
		encode = bmp.Encode
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdLevel(cfg *config.Config, args []string) {
	id := cfg.Data.SelectedMap
	if len(args) > 0 {
		id = args[0]
	}

	entry, err := cfg.Entry(id)
	if err != nil {
		fatal("Error: %v", err)
	}

	var opts []formats.Option
	if cfg.Decode.Strict {
		opts = append(opts, formats.WithStrict())
	}
	m := assets.NewManager(cfg.Data.BasePath, logger.Named("assets"), opts...)
	defer m.Close()

	level, err := m.LoadLevel(context.Background(), entry.Map, entry.Style)
	if err != nil {
		logger.Named("gbhtool").Error("level load failed", zap.String("id", id), zap.Error(err))
		fatal("Error: %v", err)
	}

	fmt.Printf("Data:      %s\n\n", m.Root())
	printMap(cfg.MapPath(entry), level.Map, false)
	fmt.Println()
	printStyle(cfg.StylePath(entry), level.Style)
}

func cmdInitConfig(cfg *config.Config, args []string) {
	var err error
	path := filepath.Join(config.ConfigDir(), "config.yaml")
	if len(args) > 0 {
		path = args[0]
		err = cfg.SaveTo(path)
	} else {
		err = cfg.Save()
	}
	if err != nil {
		fatal("Error: %v", err)
	}
	fmt.Printf("Wrote: %s\n", path)
}
