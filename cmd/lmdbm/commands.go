package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/aalhour/lmdbm"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type cmdGet struct {
	cli  *cli
	Args struct {
		Key string `positional-arg-name:"key" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *cmdGet) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadOnly)
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := parseKey(s, cmd.Args.Key)
	if err != nil {
		return err
	}
	value, err := s.Get(key)
	if err != nil {
		return errors.WithMessagef(err, "get %s", cmd.Args.Key)
	}
	fmt.Fprintln(cmd.cli.out, cmd.cli.formatValue(value))
	return nil
}

type cmdPut struct {
	cli  *cli
	Args struct {
		Key   string `positional-arg-name:"key" required:"yes"`
		Value string `positional-arg-name:"value" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *cmdPut) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeCreate)
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := parseKey(s, cmd.Args.Key)
	if err != nil {
		return err
	}
	if err = s.Put(key, parseValue(cmd.Args.Value)); err != nil {
		return errors.WithMessage(err, "put failed")
	}
	if err = s.Sync(); err != nil {
		return errors.WithMessage(err, "sync failed")
	}
	fmt.Fprintln(cmd.cli.out, "OK")
	return nil
}

type cmdDelete struct {
	cli  *cli
	Args struct {
		Key string `positional-arg-name:"key" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *cmdDelete) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadWrite)
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := parseKey(s, cmd.Args.Key)
	if err != nil {
		return err
	}
	if err = s.Delete(key); err != nil {
		return errors.WithMessage(err, "delete failed")
	}
	fmt.Fprintln(cmd.cli.out, "OK")
	return nil
}

type cmdPop struct {
	cli     *cli
	Default string `long:"default" description:"Printed when the key is absent"`
	Args    struct {
		Key string `positional-arg-name:"key" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *cmdPop) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadWrite)
	if err != nil {
		return err
	}
	defer s.Close()

	key, err := parseKey(s, cmd.Args.Key)
	if err != nil {
		return err
	}
	value, err := s.Pop(key, parseValue(cmd.Default))
	if err != nil {
		return errors.WithMessage(err, "pop failed")
	}
	fmt.Fprintln(cmd.cli.out, cmd.cli.formatValue(value))
	return nil
}

type cmdScan struct {
	cli   *cli
	Limit int `long:"limit" description:"Maximum number of entries (0 = unlimited)"`
}

func (cmd *cmdScan) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadOnly)
	if err != nil {
		return err
	}
	defer s.Close()

	var count int
	for e, err := range s.Items() {
		if err != nil {
			return errors.WithMessage(err, "iterator error")
		}
		fmt.Fprintf(cmd.cli.out, "%s => %s\n", cmd.cli.formatKey(s, e.Key), cmd.cli.formatValue(e.Value))

		count++
		if cmd.Limit > 0 && count >= cmd.Limit {
			break
		}
	}
	fmt.Fprintf(cmd.cli.out, "\n(%d entries scanned)\n", count)
	return nil
}

type cmdStat struct {
	cli *cli
}

func (cmd *cmdStat) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadOnly)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Len()
	if err != nil {
		return err
	}
	size, err := s.MapSize()
	if err != nil {
		return err
	}
	var fileSize = "-"
	if fi, err := os.Stat(filepath.Join(s.Path(), "data.mdb")); err == nil {
		fileSize = humanize.IBytes(uint64(fi.Size()))
	}

	var table = tablewriter.NewWriter(cmd.cli.out)
	table.Header("Property", "Value")
	for _, row := range [][2]string{
		{"Path", s.Path()},
		{"Pipeline", s.Pipeline().String()},
		{"Entries", humanize.Comma(int64(n))},
		{"Map size", humanize.IBytes(uint64(size))},
		{"Data file", fileSize},
	} {
		if err = table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}

type cmdLoad struct {
	cli  *cli
	Args struct {
		File string `positional-arg-name:"file" required:"yes" description:"Input file, or - for stdin"`
	} `positional-args:"yes"`
}

func (cmd *cmdLoad) Execute([]string) (err error) {
	var in io.ReadCloser
	if cmd.Args.File == "-" {
		in = io.NopCloser(os.Stdin)
	} else if in, err = os.Open(cmd.Args.File); err != nil {
		return err
	}
	defer in.Close()

	s, err := cmd.cli.open(lmdbm.ModeCreate)
	if err != nil {
		return err
	}
	defer s.Close()

	var b = lmdbm.NewBatch()
	var scanner = bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64<<20)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		k, v, ok := bytes.Cut(scanner.Bytes(), []byte{'\t'})
		if !ok {
			return errors.Errorf("%s:%d: expected KEY<TAB>VALUE", cmd.Args.File, line)
		}
		key, err := parseKey(s, string(k))
		if err != nil {
			return errors.WithMessagef(err, "%s:%d", cmd.Args.File, line)
		}
		b.Put(key, parseValue(string(v)))
	}
	if err = scanner.Err(); err != nil {
		return err
	}

	if err = s.Write(b); err != nil {
		return errors.WithMessage(err, "load failed")
	}
	size, _ := s.MapSize()
	log.WithFields(log.Fields{"entries": b.Count(), "mapSize": humanize.IBytes(uint64(size))}).Info("loaded")
	fmt.Fprintf(cmd.cli.out, "loaded %d entries\n", b.Count())
	return nil
}

type cmdBackup struct {
	cli     *cli
	Compact bool `long:"compact" description:"Omit free pages from the copy"`
	Args    struct {
		Dst string `positional-arg-name:"dst" required:"yes" description:"Destination directory; must not exist"`
	} `positional-args:"yes"`
}

func (cmd *cmdBackup) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadOnly)
	if err != nil {
		return err
	}
	defer s.Close()

	if err = s.Backup(cmd.Args.Dst, cmd.Compact); err != nil {
		return err
	}
	fmt.Fprintf(cmd.cli.out, "backed up to %s\n", cmd.Args.Dst)
	return nil
}

type cmdVerify struct {
	cli         *cli
	Parallelism int `long:"parallelism" description:"Concurrent decoders (0 = GOMAXPROCS)"`
}

func (cmd *cmdVerify) Execute([]string) error {
	s, err := cmd.cli.open(lmdbm.ModeReadOnly)
	if err != nil {
		return err
	}
	defer s.Close()

	var keys [][]byte
	for k, err := range s.Keys() {
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	var parallelism = cmd.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	var corrupt []string
	var g errgroup.Group
	g.SetLimit(parallelism)
	for _, key := range keys {
		g.Go(func() error {
			_, err := s.Get(key)
			if errors.Is(err, lmdbm.ErrCorruptData) {
				mu.Lock()
				corrupt = append(corrupt, cmd.cli.formatKey(s, key))
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	sort.Strings(corrupt)
	for _, k := range corrupt {
		fmt.Fprintf(cmd.cli.out, "corrupt: %s\n", k)
	}
	fmt.Fprintf(cmd.cli.out, "%d entries verified, %d corrupt\n", len(keys), len(corrupt))
	if len(corrupt) != 0 {
		return errors.WithMessagef(lmdbm.ErrCorruptData, "%d corrupt values", len(corrupt))
	}
	return nil
}

type cmdRemove struct {
	cli       *cli
	MissingOK bool `long:"missing-ok" description:"Ignore store files which do not exist"`
}

func (cmd *cmdRemove) Execute([]string) error {
	if err := lmdbm.RemoveStore(cmd.cli.Store.Path, cmd.MissingOK); err != nil {
		return err
	}
	fmt.Fprintf(cmd.cli.out, "removed %s\n", cmd.cli.Store.Path)
	return nil
}
