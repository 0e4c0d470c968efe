// Package prompt asks a human to settle conflicts the policy cannot decide.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/franz/music-catalog/internal/acoustid"
	"github.com/franz/music-catalog/internal/policy"
	"github.com/franz/music-catalog/internal/util"
)

// DefaultPageSize is the number of album candidates shown at once
const DefaultPageSize = 10

// Terminal prompts on a line based terminal
type Terminal struct {
	in       io.Reader
	out      io.Writer
	lines    chan string
	done     chan struct{}
	start    sync.Once
	stop     sync.Once
	player   Previewer
	pageSize int
	logger   *util.Logger
}

// Config holds terminal configuration
type Config struct {
	In       io.Reader // defaults to os.Stdin
	Out      io.Writer // defaults to os.Stdout
	Player   Previewer // nil disables audio preview
	PageSize int
	Logger   *util.Logger
}

// NewTerminal creates a terminal prompt
func NewTerminal(cfg *Config) *Terminal {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Terminal{
		in:       in,
		out:      out,
		lines:    make(chan string),
		done:     make(chan struct{}),
		player:   cfg.Player,
		pageSize: pageSize,
		logger:   util.OrDefault(cfg.Logger),
	}
}

// readLines feeds lines until input ends or the terminal is closed
func (t *Terminal) readLines() {
	defer close(t.lines)
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-t.done:
			return
		}
	}
}

// readLine returns the next trimmed, lower case answer. Input is read only
// once a question is asked. End of input and Close are treated as quit so a
// closed stdin cannot loop forever.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return "q", nil
	default:
	}
	t.start.Do(func() { go t.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "q", nil
	case line, ok := <-t.lines:
		if !ok {
			return "q", nil
		}
		return strings.ToLower(strings.TrimSpace(line)), nil
	}
}

func (t *Terminal) preview(path string) {
	if t.player == nil {
		return
	}
	fmt.Fprintln(t.out, "    (Playing NEW file...)")
	if err := t.player.Play(path); err != nil {
		fmt.Fprintf(t.out, "    (!) %v\n", err)
	}
}

func (t *Terminal) stopPreview() {
	if t.player != nil {
		t.player.Stop()
	}
}

// ResolveConflict shows both files and returns the human's choice. The
// preview is stopped on every return path.
func (t *Terminal) ResolveConflict(ctx context.Context, c policy.Conflict) (policy.Choice, error) {
	defer t.stopPreview()

	fmt.Fprintf(t.out, "\n[?] Uncertain match (%.1f%%) detected!\n", c.Similarity*100)
	fmt.Fprintln(t.out, conflictTable(c))
	t.preview(c.New.Path)

	for {
		fmt.Fprint(t.out, "    Keep (N)ew, (O)ld, (S)kip, or (Q)uit? ")
		answer, err := t.readLine(ctx)
		if err != nil {
			return "", err
		}
		switch answer {
		case "n":
			return policy.ChoiceKeepNew, nil
		case "o":
			return policy.ChoiceKeepOld, nil
		case "s":
			return policy.ChoiceSkip, nil
		case "q":
			return policy.ChoiceQuit, nil
		}
	}
}

func conflictTable(c policy.Conflict) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "NEW", "OLD"})

	side := func(label string, f func(s policy.Side) string) {
		tw.AppendRow(table.Row{label, f(c.New), f(c.Old)})
	}
	side("File", func(s policy.Side) string { return filepath.Base(s.Path) })
	side("Folder", func(s policy.Side) string { return filepath.Dir(s.Path) })
	side("Format", func(s policy.Side) string { return s.Attributes.Format })
	side("Bit depth", func(s policy.Side) string { return optional(s.Attributes.BitDepth, " bit") })
	side("Sample rate", func(s policy.Side) string { return optional(s.Attributes.SampleRate, " Hz") })
	side("Bitrate", func(s policy.Side) string { return optional(s.Attributes.BitrateKbps, " kbps") })
	side("Size", func(s policy.Side) string { return util.FormatBytes(s.Attributes.SizeBytes) })
	side("Score", func(s policy.Side) string { return humanize.Comma(s.Score) })

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func optional(v int, unit string) string {
	if v <= 0 {
		return "-"
	}
	return strconv.Itoa(v) + unit
}

// ChooseAlbums lets the human pick one or more releases for path. It
// returns the chosen indices with ChoiceKeepNew, or ChoiceSkip/ChoiceQuit
// and no indices.
func (t *Terminal) ChooseAlbums(ctx context.Context, path string, cands []acoustid.Candidate) ([]int, policy.Choice, error) {
	if len(cands) == 0 {
		return nil, policy.ChoiceSkip, nil
	}
	defer t.stopPreview()
	t.preview(path)

	pages := (len(cands) + t.pageSize - 1) / t.pageSize
	page := 0

	for {
		start := page * t.pageSize
		end := start + t.pageSize
		if end > len(cands) {
			end = len(cands)
		}

		fmt.Fprintf(t.out, "\n[!] Ambiguous match for file: %s\n", filepath.Base(path))
		fmt.Fprintf(t.out, "    Page %d/%d\n", page+1, pages)
		fmt.Fprintln(t.out, candidateTable(cands, start, end))

		options := []string{}
		if page < pages-1 {
			options = append(options, "(N)ext")
		}
		if page > 0 {
			options = append(options, "(P)rev")
		}
		options = append(options, "(0) Skip", "(Q)uit")
		fmt.Fprintf(t.out, "Select album # (1-%d, comma-separated for multiple), %s: ", len(cands), strings.Join(options, ", "))

		answer, err := t.readLine(ctx)
		if err != nil {
			return nil, "", err
		}

		switch {
		case answer == "0":
			return nil, policy.ChoiceSkip, nil
		case answer == "q":
			return nil, policy.ChoiceQuit, nil
		case answer == "n" && page < pages-1:
			page++
			continue
		case answer == "p" && page > 0:
			page--
			continue
		}

		if picks, ok := parseSelection(answer, len(cands)); ok {
			return picks, policy.ChoiceKeepNew, nil
		}
		fmt.Fprintln(t.out, "Invalid selection.")
	}
}

// parseSelection parses "1, 3,5" into zero based indices, dropping repeats
func parseSelection(answer string, n int) ([]int, bool) {
	var picks []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 1 || idx > n {
			return nil, false
		}
		if !seen[idx] {
			seen[idx] = true
			picks = append(picks, idx-1)
		}
	}
	return picks, len(picks) > 0
}

func candidateTable(cands []acoustid.Candidate, start, end int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Own", "Sim", "Ctry", "Year", "Artist", "Album"})
	for i := start; i < end; i++ {
		c := cands[i]
		own := ""
		if c.Owned {
			own = "*"
		}
		year := ""
		if c.Year > 0 {
			year = strconv.Itoa(c.Year)
		}
		tw.AppendRow(table.Row{i + 1, own, fmt.Sprintf("%d%%", int(c.Similarity*100)), c.Country, year, truncate(c.AlbumArtist, 24), c.Album})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	return tw.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Close stops any preview still running and releases the input reader.
// Later questions are answered with quit.
func (t *Terminal) Close() error {
	t.stopPreview()
	t.stop.Do(func() { close(t.done) })
	return nil
}
