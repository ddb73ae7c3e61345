package alpha

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Export is one session as written by the Alpha Progression CSV export.
type Export struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []ExportExercise
}

// ExportExercise is one numbered exercise block within an export session.
type ExportExercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []ExportSet
}

// ExportSet is a working or warm-up set. Weights are kilograms.
type ExportSet struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              float64
	IsWarmup         bool
}

var (
	// "Push · Day 1";"2026-02-17 5:04 h";"1:12 hr"
	sessionLine = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)\s+h";"(.+)"$`)

	// "1. Bench Press · Barbell · 6 reps[ · modifiers]"[;"warm-ups"]
	exerciseLine = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s+reps(.*?)"(?:;"(.+)")?$`)

	// 1;102,5;6;0
	setLine = regexp.MustCompile(`^(\d+);(.+);(\d+);(.+)$`)

	// WU1 · 37,5 kg · 9 reps
	warmupEntry = regexp.MustCompile(`WU(\d+)\s+·\s+(.+?)\s+kg\s+·\s+(\d+)\s+reps`)

	columnLine = regexp.MustCompile(`^#;KG;REPS;RIR$`)
)

// parser accumulates sessions line by line. A blank line or a new session
// header closes the current session.
type parser struct {
	out      []Export
	session  *Export
	exercise *ExportExercise
}

func (p *parser) closeExercise() {
	if p.exercise != nil && p.session != nil {
		p.session.Exercises = append(p.session.Exercises, *p.exercise)
	}
	p.exercise = nil
}

func (p *parser) closeSession() {
	p.closeExercise()
	if p.session != nil {
		p.out = append(p.out, *p.session)
	}
	p.session = nil
}

func (p *parser) line(line string) error {
	switch {
	case line == "":
		p.closeSession()
	case columnLine.MatchString(line):
	case sessionLine.MatchString(line):
		m := sessionLine.FindStringSubmatch(line)
		p.closeSession()
		date, err := parseSessionDate(m[2])
		if err != nil {
			return err
		}
		p.session = &Export{Name: m[1], Date: date, Duration: m[3]}
	case exerciseLine.MatchString(line):
		if p.session == nil {
			return fmt.Errorf("exercise without session: %q", line)
		}
		m := exerciseLine.FindStringSubmatch(line)
		p.closeExercise()
		num, _ := strconv.Atoi(m[1])
		target, _ := strconv.Atoi(m[4])
		p.exercise = &ExportExercise{
			Number:     num,
			Name:       strings.TrimSpace(m[2]),
			Equipment:  strings.TrimSpace(m[3]),
			TargetReps: target,
			Sets:       parseWarmups(m[6]),
		}
	case setLine.MatchString(line):
		if p.exercise == nil {
			return fmt.Errorf("set data without exercise: %q", line)
		}
		m := setLine.FindStringSubmatch(line)
		num, _ := strconv.Atoi(m[1])
		weight, bw := parseWeight(m[2])
		reps, _ := strconv.Atoi(m[3])
		p.exercise.Sets = append(p.exercise.Sets, ExportSet{
			Number:           num,
			WeightKg:         weight,
			IsBodyweightPlus: bw,
			Reps:             reps,
			RIR:              parseDecimal(m[4]),
		})
	}
	// Anything else is free-text metadata and is ignored.
	return nil
}

// Parse reads an Alpha Progression CSV export.
func Parse(r io.Reader) ([]Export, error) {
	var p parser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := p.line(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	p.closeSession()
	return p.out, nil
}

// parseSessionDate accepts both "2026-02-19 4:54" and "2026-02-19 16:54".
func parseSessionDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing session date %q", s)
}

// parseWarmups reads "WU1 · 37,5 kg · 9 reps<br>WU2 · ..." entries.
func parseWarmups(s string) []ExportSet {
	if s == "" {
		return nil
	}
	var sets []ExportSet
	for _, part := range strings.Split(s, "<br>") {
		m := warmupEntry.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		weight, bw := parseWeight(m[2])
		reps, _ := strconv.Atoi(m[3])
		sets = append(sets, ExportSet{
			Number:           num,
			WeightKg:         weight,
			IsBodyweightPlus: bw,
			Reps:             reps,
			IsWarmup:         true,
		})
	}
	return sets
}

// parseWeight handles "+35" (bodyweight plus 35) and comma decimals.
func parseWeight(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		return parseDecimal(rest), true
	}
	return parseDecimal(s), false
}

// parseDecimal reads "102,5" as 102.5. Unparseable input yields 0.
func parseDecimal(s string) float64 {
	f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	return f
}

// parseDuration reads "1:12 hr" or "45 min" into seconds.
func parseDuration(s string) int {
	s = strings.TrimSpace(s)
	if v, ok := strings.CutSuffix(s, " hr"); ok {
		h, m, found := strings.Cut(v, ":")
		if !found {
			return 0
		}
		hours, err1 := strconv.Atoi(h)
		mins, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil {
			return 0
		}
		return hours*3600 + mins*60
	}
	if v, ok := strings.CutSuffix(s, " min"); ok {
		mins, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return mins * 60
	}
	return 0
}
