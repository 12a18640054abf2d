// Package interpreter implements the command-file driver: the
// external collaborator that parses `FLH/<m>`, `INC:<k>`, and
// `BUS=:<k>` lines and writes the matching output lines, ending with
// the final `H/<height>` line. It is not part of the core engine but
// is the only thing that calls into it.
package interpreter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/talDoFlemis/wineengine/internal/engine"
	"github.com/talDoFlemis/wineengine/internal/winesource"
)

// ErrParse signals a malformed header or command line, fatal to the
// current run.
var ErrParse = fmt.Errorf("interpreter: parse error")

// ParseHeader reads the mandatory `FLH/<m>` first line and returns m.
func ParseHeader(line string) (int, error) {
	rest, ok := strings.CutPrefix(line, "FLH/")
	if !ok {
		return 0, fmt.Errorf("%w: expected FLH/<m> header, got %q", ErrParse, line)
	}
	m, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: header degree %q: %v", ErrParse, rest, err)
	}
	if m <= 1 {
		return 0, fmt.Errorf("%w: header degree must be > 1, got %d", ErrParse, m)
	}
	return m, nil
}

// Run drives cmds against eng using source for INC lookups, writing
// one result line per command to out plus the trailing height line.
// Each line is flushed as soon as it is produced; a command that
// fails returns an error immediately and no line is written for it.
//
// The command file's `FLH/<m>` header is authoritative for the
// index's split degree: Run calls eng.SetDegree(m) as soon as the
// header is parsed, before any command runs, overriding whatever
// degree eng was constructed with.
func Run(cmds io.Reader, out io.Writer, eng *engine.Engine, source *winesource.Catalog) error {
	scanner := bufio.NewScanner(cmds)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	w := bufio.NewWriter(out)
	defer w.Flush()

	m, err := readHeader(scanner)
	if err != nil {
		return err
	}
	eng.SetDegree(m)
	if err := writeLine(w, fmt.Sprintf("FLH/%d", m)); err != nil {
		return err
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resultLine, err := runCommand(line, eng, source)
		if err != nil {
			return err
		}
		if err := writeLine(w, resultLine); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("interpreter: read commands: %w", err)
	}

	return writeLine(w, fmt.Sprintf("H/%d", eng.Height()))
}

func readHeader(scanner *bufio.Scanner) (int, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return ParseHeader(line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("interpreter: read header: %w", err)
	}
	return 0, fmt.Errorf("%w: empty commands file", ErrParse)
}

func runCommand(line string, eng *engine.Engine, source *winesource.Catalog) (string, error) {
	switch {
	case strings.HasPrefix(line, "INC:"):
		k, err := parseKey(strings.TrimPrefix(line, "INC:"))
		if err != nil {
			return "", err
		}
		n := 0
		for _, rec := range source.LookupByHarvestYear(k) {
			if err := eng.Insert(rec); err != nil {
				return "", fmt.Errorf("interpreter: INC:%d: %w", k, err)
			}
			n++
		}
		return fmt.Sprintf("INC:%d/%d", k, n), nil

	case strings.HasPrefix(line, "BUS=:"):
		k, err := parseKey(strings.TrimPrefix(line, "BUS=:"))
		if err != nil {
			return "", err
		}
		results, err := eng.Search(k)
		if err != nil {
			return "", fmt.Errorf("interpreter: BUS=:%d: %w", k, err)
		}
		return fmt.Sprintf("BUS=:%d/%d", k, len(results)), nil

	default:
		return "", fmt.Errorf("%w: unknown command %q", ErrParse, line)
	}
}

func parseKey(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q: %v", ErrParse, s, err)
	}
	return int32(v), nil
}

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("interpreter: write output: %w", err)
	}
	return w.Flush()
}
