// plthaw - Perl Storable nfreeze inspection tool
//
// Usage:
//
//	plthaw dump [options] [file]   Decode every image and print it
//	plthaw version                 Print version info
//
// Input may be gzip or zstd compressed. If no file is given, reads from stdin.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Neumenon/storable/storable"
)

const libVersion = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var input io.Reader = os.Stdin

	format := "yaml"
	hexInput := false
	var opts []storable.Option
	fileArg := ""
	for _, arg := range os.Args[2:] {
		switch {
		case strings.HasPrefix(arg, "--format="):
			format = strings.TrimPrefix(arg, "--format=")
		case arg == "--hex":
			hexInput = true
		case arg == "--storable-tags":
			opts = append(opts, storable.WithStorableTags())
		case arg == "--trace":
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
			opts = append(opts, storable.WithLogger(logger))
		case strings.HasPrefix(arg, "--max-depth="):
			n, err := parseIntArg(arg, "--max-depth=")
			if err != nil {
				fatal("bad --max-depth: %v", err)
			}
			opts = append(opts, storable.WithMaxDepth(n))
		default:
			if !strings.HasPrefix(arg, "-") && arg != "-" {
				fileArg = arg
			}
		}
	}

	if fileArg != "" {
		f, err := os.Open(fileArg)
		if err != nil {
			fatal("open file: %v", err)
		}
		defer f.Close()
		input = f
	}

	switch cmd {
	case "dump":
		if format != "yaml" && format != "json" {
			fatal("unknown format: %s (want yaml or json)", format)
		}
		if hexInput {
			data, err := io.ReadAll(input)
			if err != nil {
				fatal("read input: %v", err)
			}
			raw, err := decodeHex(data)
			if err != nil {
				fatal("parse hex: %v", err)
			}
			input = bytes.NewReader(raw)
		}
		cmdDump(input, format, opts)
	case "version", "-v", "--version":
		fmt.Printf("plthaw %s (nfreeze %d.%d)\n", libVersion, storable.Magic[0]>>1, storable.Magic[1])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `plthaw - Perl Storable nfreeze inspection tool

Usage:
  plthaw dump [options] [file]   Decode every image and print it
  plthaw version                 Print version info

Options:
  --format=yaml|json  Output format (default: yaml)
  --hex               Input is hex text; # starts a comment
  --storable-tags     Number objects the way Perl's Storable does
  --trace             Log every record to stderr
  --max-depth=N       Maximum nesting depth (default: 10000)

Input may be gzip or zstd compressed. If no file is given, reads from stdin.

Examples:
  perl -MStorable=nfreeze -e 'print nfreeze({a => [1, 2]})' | plthaw dump
  plthaw dump --format=json --storable-tags session.bin.gz
`)
}

// cmdDump decodes images until the input ends and prints each one.
func cmdDump(r io.Reader, format string, opts []storable.Option) {
	opts = append(opts, storable.WithDecompression())
	dec := storable.NewDecoder(r, opts...)
	defer dec.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	n := 0
	for {
		v, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Flush()
			fatal("image %d: %v", n+1, err)
		}
		n++

		if err := printValue(out, v, format, n); err != nil {
			out.Flush()
			fatal("image %d: %v", n, err)
		}
	}

	fmt.Fprintf(os.Stderr, "--- %d images, %d bytes ---\n", n, dec.Offset())
}

func printValue(w io.Writer, v *storable.Value, format string, n int) error {
	switch format {
	case "json":
		jv, err := storable.ToJSONValue(v)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jv)
	default:
		data, err := storable.ToYAML(v)
		if err != nil {
			return err
		}
		if n > 1 {
			fmt.Fprintln(w, "---")
		}
		_, err = w.Write(data)
		return err
	}
}

// decodeHex parses whitespace-separated hex digits, ignoring # comments.
func decodeHex(data []byte) ([]byte, error) {
	var digits strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		digits.WriteString(strings.Join(strings.Fields(line), ""))
	}
	return hex.DecodeString(digits.String())
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "plthaw: "+format+"\n", args...)
	os.Exit(1)
}

// parseIntArg extracts an integer from a flag like "--max-depth=100"
func parseIntArg(arg, prefix string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(arg, prefix))
}
