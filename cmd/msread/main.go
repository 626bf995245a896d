// Command-line interface to multiscale chunked-array hierarchies.
// Provides inspection commands: info, coords, read, engines.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/clbarnes/multiscale-read/msread"
	"github.com/clbarnes/multiscale-read/multiscale"
	"github.com/clbarnes/multiscale-read/multiscale/ngln5"
	"github.com/clbarnes/multiscale-read/multiscale/ome"
	"github.com/clbarnes/multiscale-read/storage"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to a TOML configuration file.
	configFile = flag.String("config", "", "")

	// Which metadata convention to probe: auto, ome, or n5.
	dialect = flag.String("dialect", "auto", "")

	// In-memory chunk cache size in MiB; 0 disables caching.
	cacheSize = flag.Int("cache", 0, "")

	// Abort any single command after this many seconds; 0 means no limit.
	timeout = flag.Int("timeout", 0, "")
)

const helpMessage = `
msread is a command-line interface to multiscale chunked-array hierarchies
(OME-NGFF zarr and the Neuroglancer-N5 family).

Usage: msread [options] <command>

      -config     =string   Path to TOML configuration file.
      -dialect    =string   Metadata convention to probe: auto, ome, or n5.
      -cache      =number   In-memory chunk cache size in MiB (0 disables).
      -timeout    =number   Abort any single command after this many seconds.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	help
	engines
	info   <store url> [group path]
	coords <store url> <group path> <level>
	read   <store url> <group path> <level>

Store URLs use a scheme understood by a registered storage engine, e.g.
/path/to/dir, file:///path/to/dir, gs://bucket/prefix, s3://bucket/prefix.
`

// tomlConfig mirrors the flag set plus log rotation settings.
type tomlConfig struct {
	Log     msread.LogConfig `toml:"log"`
	Dialect string           `toml:"dialect"`
	Cache   int              `toml:"cache_mb"`
}

var usage = func() {
	fmt.Printf(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *configFile != "" {
		var cfg tomlConfig
		if _, err := toml.DecodeFile(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Couldn't read config file %q: %v\n", *configFile, err)
			os.Exit(1)
		}
		cfg.Log.SetLogger()
		if cfg.Dialect != "" && *dialect == "auto" {
			*dialect = cfg.Dialect
		}
		if cfg.Cache != 0 && *cacheSize == 0 {
			*cacheSize = cfg.Cache
		}
	}
	if *runVerbose {
		msread.SetLogMode(msread.DebugMode)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*timeout)*time.Second)
		defer cancel()
	}

	if err := DoCommand(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, args []string) error {
	switch args[0] {
	case "engines":
		return DoEngines()
	case "info":
		return DoInfo(ctx, args[1:])
	case "coords":
		return DoCoords(ctx, args[1:])
	case "read":
		return DoRead(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// DoEngines lists the registered storage engines.
func DoEngines() error {
	fmt.Println(storage.EnginesAvailable())
	return nil
}

func openStore(ctx context.Context, url string) (storage.Store, error) {
	store, err := storage.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if *cacheSize > 0 {
		store = storage.Cached(store, *cacheSize<<20)
	}
	return store, nil
}

// openHierarchy probes the group per the -dialect flag.  In auto mode the
// OME-NGFF convention is tried first, then the Neuroglancer-N5 family.
func openHierarchy(ctx context.Context, store storage.Store, group string) (multiscale.Hierarchy, error) {
	switch *dialect {
	case "ome":
		return ome.Open(ctx, store, group)
	case "n5":
		return ngln5.Open(ctx, store, group)
	case "auto":
		h, omeErr := ome.Open(ctx, store, group)
		if omeErr == nil {
			return h, nil
		}
		nh, n5Err := ngln5.Open(ctx, store, group)
		if n5Err == nil {
			return nh, nil
		}
		return nil, fmt.Errorf("group %q matched no known convention (ome: %v; n5: %v)", group, omeErr, n5Err)
	default:
		return nil, fmt.Errorf("unknown dialect %q: want auto, ome, or n5", *dialect)
	}
}

// DoInfo prints a summary of every scale level of a hierarchy.
func DoInfo(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("info command must be followed by a store url")
	}
	store, err := openStore(ctx, args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	group := ""
	if len(args) > 1 {
		group = args[1]
	}

	h, err := openHierarchy(ctx, store, group)
	if err != nil {
		return err
	}
	if nh, ok := h.(*ngln5.Hierarchy); ok {
		fmt.Printf("Convention: %s\n", nh.Dialect())
	} else {
		fmt.Println("Convention: ome-ngff")
	}
	fmt.Printf("Levels: %d\n", h.NumLevels())

	for i := 0; i < h.NumLevels(); i++ {
		da, err := h.Level(ctx, i)
		if err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
		elems := int64(1)
		for _, extent := range da.Shape() {
			elems *= extent
		}
		fmt.Printf("  %-6s %v  axes %v  %s elements\n",
			da.Name, da.Shape(), da.Dims(), humanize.Comma(elems))
	}
	return nil
}

// DoCoords prints the world-space coordinates of one scale level.
func DoCoords(ctx context.Context, args []string) error {
	da, store, err := resolveLevel(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, c := range da.Coords {
		if c.Labels != nil {
			fmt.Printf("%-8s %v\n", c.Name, c.Labels)
			continue
		}
		unit := c.Unit
		if unit == "" {
			unit = "unitless"
		}
		fmt.Printf("%-8s [%s] first %g last %g (%d positions)\n",
			c.Name, unit, c.Values[0], c.Values[len(c.Values)-1], c.Len())
	}
	return nil
}

// DoRead materializes one scale level and reports how much was read.
func DoRead(ctx context.Context, args []string) error {
	da, store, err := resolveLevel(ctx, args)
	if err != nil {
		return err
	}
	defer store.Close()

	timelog := msread.NewTimeLog()
	nd, err := da.Data(ctx)
	if err != nil {
		return err
	}
	timelog.Infof("read level %s, %s of %s", da.Name,
		humanize.IBytes(uint64(len(nd.Data))), nd.T)
	fmt.Printf("%s: shape %v, %s (%s)\n", da.Name, nd.Shape, nd.T,
		humanize.IBytes(uint64(len(nd.Data))))
	return nil
}

func resolveLevel(ctx context.Context, args []string) (*multiscale.DataArray, storage.Store, error) {
	if len(args) < 3 {
		return nil, nil, fmt.Errorf("command must be followed by: <store url> <group path> <level>")
	}
	level, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, nil, fmt.Errorf("bad level number %q: %v", args[2], err)
	}
	store, err := openStore(ctx, args[0])
	if err != nil {
		return nil, nil, err
	}
	h, err := openHierarchy(ctx, store, args[1])
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	da, err := h.Level(ctx, level)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return da, store, nil
}
