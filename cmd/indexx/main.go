// indexX is the command-line driver for the index-make and key-access
// layers: point it at a key-marked data file and it builds (or opens) an
// index alongside it, then either reports build statistics or drops into
// an interactive key-lookup REPL.
//
// Usage:
//
//	indexx -d <datafile> -k <keysize> [-i <idxfile>] [-m <mark>] [-h <capacity>] [-v] [-t]
//
// Spec.md explicitly excludes the original's getopt-style option parser
// as a respecified component; the surface here is the same flag set
// reimplemented with github.com/spf13/pflag.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/keyoffset/recidx"
)

// fileConfig mirrors the flags that can be set from an optional -c
// config.jsonc, so a build can be checked into source control instead
// of reconstructed from a long command line every time.
type fileConfig struct {
	DataFile        string `json:"dataFile"`
	IndexFile       string `json:"indexFile"`
	KeyMark         string `json:"keyMark"`
	KeySize         int    `json:"keySize"`
	InitialCapacity uint64 `json:"initialCapacity"`
	Backend         string `json:"backend"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indexx: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("indexx", pflag.ContinueOnError)

	dataFile := fs.StringP("data", "d", "", "data file to index")
	keySize := fs.IntP("key-size", "k", 0, "fixed key size in bytes (SS backend)")
	idxFile := fs.StringP("index", "i", "", "index file path (default: <datafile>.idx)")
	keyMark := fs.StringP("mark", "m", "#", "key-mark byte that starts each record")
	capacity := fs.Uint64P("capacity", "h", 1000, "initial SS capacity (ignored for VA)")
	verbose := fs.BoolP("verbose", "v", false, "report build/open progress")
	interactive := fs.BoolP("interactive", "t", false, "enter the interactive key-lookup REPL")
	backend := fs.String("backend", "ss", "backend to use: ss or va")
	configPath := fs.StringP("config", "c", "", "optional JSONC config file")
	snapshotOut := fs.String("snapshot", "", "write a compressed snapshot of the index to this path and exit")
	restoreIn := fs.String("restore", "", "restore a snapshot from this path into --index and exit")
	doVerify := fs.Bool("verify", false, "verify the index against the data on disk and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if *configPath != "" {
		if err := applyFileConfig(*configPath, dataFile, idxFile, keyMark, keySize, capacity, backend); err != nil {
			return fmt.Errorf("loading config %s: %w", *configPath, err)
		}
	}

	be := recidx.BackendSS
	if *backend == "va" {
		be = recidx.BackendVA
	} else if *backend != "ss" {
		return fmt.Errorf("unknown --backend %q: want ss or va", *backend)
	}

	if *idxFile == "" {
		if *dataFile == "" {
			return errors.New("missing -d/--data")
		}
		*idxFile = *dataFile + ".idx"
	}

	if *restoreIn != "" {
		return restoreSnapshot(*restoreIn, *idxFile)
	}

	if len(*keyMark) != 1 {
		return fmt.Errorf("-m/--mark must be exactly one byte, got %q", *keyMark)
	}
	mark := (*keyMark)[0]

	cfg := recidx.Config{KeyMark: mark, WriteMetaSidecar: *verbose}

	h, stats, err := openOrBuild(be, *idxFile, *dataFile, *keySize, *capacity, cfg, *verbose)
	if err != nil {
		return err
	}
	defer h.Close()

	installShutdownHook(h)

	if *verbose && stats != nil {
		fmt.Printf("built %s: %d records, %d duplicates, %d resizes, %.2fs\n",
			*idxFile, stats.RecordCount, stats.Duplicates, stats.Resizes, stats.ElapsedSeconds)
	}

	if *doVerify {
		if err := h.Verify(); err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		fmt.Println("verify: OK")
		return nil
	}

	if *snapshotOut != "" {
		return writeSnapshot(*idxFile, *snapshotOut)
	}

	if *interactive {
		return newREPL(h, *dataFile, *keySize, mark, cfg).run()
	}

	total, used := h.GetSize()
	fmt.Printf("%s: %d/%d slots used\n", *idxFile, used, total)
	return nil
}

// openOrBuild builds a fresh index via BuildIndex if idxPath does not
// yet exist, otherwise opens the existing one directly. stats is nil
// when an existing index was opened rather than built.
func openOrBuild(be recidx.Backend, idxPath, dataPath string, keySize int, capacity uint64, cfg recidx.Config, verbose bool) (*recidx.Handle, *recidx.BuildStats, error) {
	if _, err := os.Stat(idxPath); err == nil {
		h, openErr := recidx.Open(be, idxPath, recidx.ReadWrite, cfg)
		if openErr != nil {
			return nil, nil, fmt.Errorf("open %s: %w", idxPath, openErr)
		}
		return h, nil, nil
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("stat %s: %w", idxPath, err)
	}

	if dataPath == "" {
		return nil, nil, errors.New("missing -d/--data: required to build a new index")
	}
	if be == recidx.BackendSS && keySize <= 0 {
		return nil, nil, errors.New("missing -k/--key-size: required to build a new SS index")
	}

	stats, err := recidx.BuildIndex(be, idxPath, dataPath, keySize, capacity, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build %s: %w", idxPath, err)
	}

	h, err := recidx.Open(be, idxPath, recidx.ReadWrite, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("reopen built index %s: %w", idxPath, err)
	}
	return h, &stats, nil
}

func applyFileConfig(path string, dataFile, idxFile, keyMark *string, keySize *int, capacity *uint64, backend *string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if *dataFile == "" && fc.DataFile != "" {
		*dataFile = fc.DataFile
	}
	if *idxFile == "" && fc.IndexFile != "" {
		*idxFile = fc.IndexFile
	}
	if fc.KeyMark != "" {
		*keyMark = fc.KeyMark
	}
	if fc.KeySize > 0 {
		*keySize = fc.KeySize
	}
	if fc.InitialCapacity > 0 {
		*capacity = fc.InitialCapacity
	}
	if fc.Backend != "" {
		*backend = fc.Backend
	}
	return nil
}

// installShutdownHook supplements original_source/SS.C's vSigCatch: on
// SIGINT/SIGTERM, close the handle so header state hits disk before the
// process dies, rather than leaving an index mid-write.
func installShutdownHook(h *recidx.Handle) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		h.Close()
		os.Exit(130)
	}()
}

func writeSnapshot(idxPath, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", outPath, err)
	}
	defer f.Close()
	if err := recidx.SnapshotIndex(idxPath, f); err != nil {
		return fmt.Errorf("snapshot %s: %w", idxPath, err)
	}
	fmt.Printf("snapshot written to %s\n", outPath)
	return nil
}

func restoreSnapshot(snapshotPath, destPath string) error {
	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("open snapshot %s: %w", snapshotPath, err)
	}
	defer f.Close()
	if err := recidx.RestoreIndex(f, destPath); err != nil {
		return fmt.Errorf("restore to %s: %w", destPath, err)
	}
	fmt.Printf("restored %s from %s\n", destPath, snapshotPath)
	return nil
}

// repl is the interactive command loop entered with -t, wired to
// github.com/peterh/liner for line editing and history instead of a
// bare bufio.Scanner loop.
type repl struct {
	h        *recidx.Handle
	dataFile *os.File
	keySize  int
	keyMark  byte
	cache    *recidx.OffsetCache
	rb       *recidx.RecordBuffer
	liner    *liner.State
}

func newREPL(h *recidx.Handle, dataPath string, keySize int, keyMark byte, cfg recidx.Config) *repl {
	r := &repl{
		h:       h,
		keySize: keySize,
		keyMark: keyMark,
		cache:   recidx.NewOffsetCache(),
		rb:      recidx.NewRecordBuffer(4096, keyMark, ' ', cfg),
	}
	if dataPath != "" {
		if f, err := os.Open(dataPath); err == nil {
			r.dataFile = f
		}
	}
	return r
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()
	r.liner.SetCtrlCAborts(true)

	fmt.Println("indexx interactive mode. Type 'help' for commands.")

	for {
		line, err := r.liner.Prompt("indexx> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("\nBye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			return nil
		case "help", "?":
			r.printHelp()
		case "get":
			r.cmdGet(args)
		case "put":
			r.cmdPut(args)
		case "del", "delete":
			r.cmdDelete(args)
		case "list":
			r.cmdList(args)
		case "search":
			r.cmdSearch(args)
		case "window":
			r.cmdWindow(args)
		case "dump":
			r.cmdDump()
		case "info":
			r.cmdInfo()
		case "verify":
			r.cmdVerify()
		case "resize":
			r.cmdResize(args)
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  get <key>                retrieve a key's offset")
	fmt.Println("  put <key> <offset>       insert a key (fails if already present)")
	fmt.Println("  del <key>                delete a key")
	fmt.Println("  list <key-list>          expand a key-list grammar and cache the hits")
	fmt.Println("  search <pattern>         regex-filter the last cached record set")
	fmt.Println("  window <pos> <n>         slide the record buffer; pos: first/prev/current/next/last/<n>")
	fmt.Println("  dump                     list every live key (SS only)")
	fmt.Println("  info                     report size and load")
	fmt.Println("  verify                   re-derive slot counts from disk and compare")
	fmt.Println("  resize <percent>         grow SS to roughly percent% of current size")
	fmt.Println("  exit / quit / q          leave the REPL")
}

func (r *repl) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: get <key>")
		return
	}
	offset, err := r.h.Find(args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("%s -> %d\n", args[0], offset)
}

func (r *repl) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: put <key> <offset>")
		return
	}
	offset, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("error: bad offset: %v\n", err)
		return
	}
	if err := r.h.Insert(args[0], offset); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func (r *repl) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: del <key>")
		return
	}
	if err := r.h.Delete(args[0]); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

func (r *repl) cmdList(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: list <key-list>")
		return
	}
	if err := r.cache.FillFromKeyList(args[0], r.keySize, r.h.Find); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("cached %d offsets\n", r.cache.Used())
	for i := uint64(1); i <= r.cache.Used(); i++ {
		fmt.Printf("  [%d] %d\n", i, r.cache.At(i))
	}
}

func (r *repl) cmdSearch(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: search <pattern>")
		return
	}
	if r.dataFile == nil {
		fmt.Println("error: no data file open (pass -d)")
		return
	}
	m, err := recidx.BuildSearch(strings.Join(args, " "), true)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if err := r.cache.FillFromSearchExpression(m, r.readRecord); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("%d records matched\n", r.cache.Used())
}

func (r *repl) readRecord(offset uint64) ([]byte, error) {
	reader := bufio.NewReader(&offsetReaderAt{r: r.dataFile, base: int64(offset)})
	line, err := reader.ReadString('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return []byte(line), nil
}

func (r *repl) cmdWindow(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: window <first|prev|current|next|last|N> <size>")
		return
	}
	if r.dataFile == nil {
		fmt.Println("error: no data file open (pass -d)")
		return
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("error: bad size: %v\n", err)
		return
	}

	pos, err := parseWindowPos(args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	if err := r.rb.Window(r.cache, pos, size, r.dataFile); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(r.rb.Debug())
}

func parseWindowPos(s string) (recidx.WindowPos, error) {
	switch strings.ToLower(s) {
	case "first":
		return recidx.First, nil
	case "prev", "previous":
		return recidx.Previous, nil
	case "current", "curr":
		return recidx.Current, nil
	case "next":
		return recidx.Next, nil
	case "last":
		return recidx.Last, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return recidx.WindowPos{}, fmt.Errorf("unrecognized window position %q", s)
	}
	return recidx.Absolute(n), nil
}

func (r *repl) cmdDump() {
	if err := r.h.Dump(os.Stdout); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func (r *repl) cmdInfo() {
	total, used := r.h.GetSize()
	percent, loadErr := r.h.GetLoad()
	fmt.Printf("slots: %d/%d used (%d%%)\n", used, total, percent)
	if errors.Is(loadErr, recidx.ErrNeedsResize) {
		fmt.Println("load threshold reached, resize advised")
	}
}

func (r *repl) cmdVerify() {
	if err := r.h.Verify(); err != nil {
		fmt.Printf("verify failed: %v\n", err)
		return
	}
	fmt.Println("verify: OK")
}

func (r *repl) cmdResize(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: resize <percent>")
		return
	}
	percent, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("error: bad percent: %v\n", err)
		return
	}
	if err := r.h.Resize(percent); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("OK")
}

// offsetReaderAt adapts an io.ReaderAt file plus a fixed base offset
// into an io.Reader, for reading a single record with bufio.Reader.
type offsetReaderAt struct {
	r    *os.File
	base int64
	pos  int64
}

func (o *offsetReaderAt) Read(p []byte) (int, error) {
	n, err := o.r.ReadAt(p, o.base+o.pos)
	o.pos += int64(n)
	return n, err
}
