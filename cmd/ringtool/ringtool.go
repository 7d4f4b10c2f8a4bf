// ringtool inspects and manipulates ring files from the command line
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/sonarlog/pkg/kibi"
	"github.com/cyclopcam/sonarlog/pkg/ringfile"
	"github.com/cyclopcam/sonarlog/pkg/sample"
	"github.com/cyclopcam/sonarlog/pkg/samplering"
	"github.com/cyclopcam/sonarlog/server/trackfile"
)

const formatBytes = "bytes"

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("ringtool", "Create, inspect, resize and drain ring files")
	ringFile := parser.String("r", "ring", &argparse.Options{Help: "Ring file", Required: true})
	format := parser.Selector("f", "format", []string{"timed", "untimed", formatBytes}, &argparse.Options{Help: "Record format of the file", Default: "timed"})

	createCmd := parser.NewCommand("create", "Create a new ring file")
	createCapacity := createCmd.String("", "capacity", &argparse.Options{Help: "Size of the data region, eg '64 KB'. Rounded down to whole records", Default: "64 KB"})

	infoCmd := parser.NewCommand("info", "Show the header of a ring file")

	dumpCmd := parser.NewCommand("dump", "Print the newest records as CSV, without consuming them")
	dumpN := dumpCmd.Int("n", "count", &argparse.Options{Help: "Number of records", Default: 20})

	resizeCmd := parser.NewCommand("resize", "Change the capacity of a ring file. When shrinking, the oldest records are lost")
	resizeCapacity := resizeCmd.String("", "capacity", &argparse.Options{Help: "New size of the data region, eg '1 MB'", Required: true})

	drainCmd := parser.NewCommand("drain", "Consume the oldest records, and print them as CSV")
	drainN := drainCmd.Int("n", "count", &argparse.Options{Help: "Maximum number of records", Default: 1000})

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	width := 1
	var sampleFormat sample.Format
	if *format != formatBytes {
		sampleFormat, err = sample.ParseFormat(*format)
		check(err)
		width = sampleFormat.Width()
	}

	parseCapacity := func(s string) int {
		b, err := kibi.ParseBytes(s)
		check(err)
		n := kibi.SamplesForBytes(b, width)
		if n <= 0 {
			check(fmt.Errorf("Capacity %v is smaller than one %v byte record", s, width))
		}
		return n
	}

	switch {
	case createCmd.Happened():
		r, err := ringfile.Create(*ringFile, parseCapacity(*createCapacity), width)
		check(err)
		printInfo(r)
		check(r.Close())
	case infoCmd.Happened():
		r, err := ringfile.Open(*ringFile, width, ringfile.OpenModeReadOnly)
		check(err)
		printInfo(r)
		r.Close()
	case dumpCmd.Happened():
		dump(*ringFile, *format, sampleFormat, *dumpN)
	case resizeCmd.Happened():
		r, err := ringfile.Open(*ringFile, width, ringfile.OpenModeReadWrite)
		check(err)
		check(r.SetCapacity(parseCapacity(*resizeCapacity)))
		printInfo(r)
		check(r.Close())
	case drainCmd.Happened():
		drain(*ringFile, *format, sampleFormat, *drainN)
	}
}

func printInfo(r *ringfile.Ring) {
	st := r.Stats()
	fmt.Printf("File:        %v\n", r.Filename())
	fmt.Printf("Record size: %v bytes\n", st.Width)
	fmt.Printf("Capacity:    %v records (%v)\n", r.Capacity(), kibi.FormatBytes(int64(st.CapacityBytes)))
	fmt.Printf("Used:        %v records (%v bytes)\n", r.Used(), st.UsedBytes)
	fmt.Printf("Read pos:    %v\n", st.ReadPos)
}

func dump(filename, format string, sampleFormat sample.Format, n int) {
	if format == formatBytes {
		r, err := ringfile.OpenBytes(filename, ringfile.OpenModeReadOnly)
		check(err)
		defer r.Close()
		buf := make([]byte, min(n, r.Used()))
		if len(buf) == 0 {
			return
		}
		got, err := r.Snapshot(buf, 0, len(buf))
		check(err)
		printBytes(buf[:got])
		return
	}
	log, err := samplering.OpenLog(filename, sampleFormat, ringfile.OpenModeReadOnly)
	check(err)
	defer log.Close()
	samples, err := log.Snapshot(n)
	check(err)
	check(trackfile.WriteCSV(os.Stdout, samples))
}

func drain(filename, format string, sampleFormat sample.Format, n int) {
	if format == formatBytes {
		r, err := ringfile.OpenBytes(filename, ringfile.OpenModeReadWrite)
		check(err)
		defer r.Close()
		buf := make([]byte, min(n, r.Used()))
		if len(buf) == 0 {
			return
		}
		got, err := r.Read(buf, 0, len(buf))
		check(err)
		printBytes(buf[:got])
		return
	}
	cache, err := samplering.OpenCache(filename, sampleFormat, ringfile.OpenModeReadWrite)
	check(err)
	defer cache.Close()
	samples, err := cache.Drain(n)
	check(err)
	check(trackfile.WriteCSV(os.Stdout, samples))
}

// Print bytes as text if they look like text, otherwise as hex
func printBytes(b []byte) {
	printable := strings.IndexFunc(string(b), func(r rune) bool {
		return r != '\n' && r != '\t' && (r < 32 || r > 126)
	}) == -1
	if printable {
		fmt.Printf("%s\n", b)
	} else {
		fmt.Printf("%x\n", b)
	}
}
