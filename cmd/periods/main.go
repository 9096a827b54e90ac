/*
main.go - Command line access to the period engine

PURPOSE:
  Runs the calendar, partitioning and selection engine without a server,
  for checking how a calendar configuration cuts a date range.

COMMANDS:
  partition   periods of one level over [--from, --to]
  separate    the same periods cut around [--select-from, --select-to)
  week        week number and week period of --date
  presets     the named settings presets

CALENDAR FLAGS (every command but presets):
  --preset        start from a settings preset
  --week-start    weekday name, abbreviation or 0..6
  --fiscal-month  1..12
  --fiscal-day    clamped to the month
  --iso           ISO-8601 weeks

EXAMPLES:
  periods partition --from 2023-01-15 --to 2023-03-20 --granularity month
  periods separate --from 2023-01-01 --to 2023-12-31 --granularity quarter \
      --fiscal-month 4 --select-from 2023-05-10 --select-to 2023-08-01
  periods week --date 2021-01-01 --iso

Output is JSON on stdout.
*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/warp/timeline-engine/calendar"
	"github.com/warp/timeline-engine/factory"
	"github.com/warp/timeline-engine/granularity"
	"github.com/warp/timeline-engine/selection"
	"github.com/warp/timeline-engine/timeline"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "periods"
	app.Usage = "partition date ranges into calendar periods"
	app.Writer = out
	app.Commands = []*cli.Command{
		partitionCommand,
		separateCommand,
		weekCommand,
		presetsCommand,
	}
	return app
}

var calendarFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "preset",
		Value: "default",
		Usage: "settings preset the other flags override",
	},
	&cli.StringFlag{
		Name:  "week-start",
		Usage: "first day of the week (name, abbreviation or 0..6)",
	},
	&cli.IntFlag{
		Name:  "fiscal-month",
		Usage: "month the fiscal year starts in (1..12)",
	},
	&cli.IntFlag{
		Name:  "fiscal-day",
		Usage: "day of the fiscal start month the fiscal year starts on",
	},
	&cli.BoolFlag{
		Name:  "iso",
		Usage: "number weeks by ISO-8601",
	},
}

var rangeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "from",
		Usage:    "first date (YYYY-MM-DD)",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "to",
		Usage:    "last date, inclusive (YYYY-MM-DD)",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "granularity",
		Value: "month",
		Usage: "year, quarter, month, week or day",
	},
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var all []cli.Flag
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

var partitionCommand = &cli.Command{
	Name:   "partition",
	Usage:  "print the periods of one level over a date range",
	Flags:  flags(rangeFlags, calendarFlags),
	Action: partition,
}

var separateCommand = &cli.Command{
	Name:  "separate",
	Usage: "print the periods cut around a selection",
	Flags: flags(rangeFlags, calendarFlags, []cli.Flag{
		&cli.StringFlag{
			Name:     "select-from",
			Usage:    "first selected date",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "select-to",
			Usage:    "end of the selection, exclusive",
			Required: true,
		},
	}),
	Action: separate,
}

var weekCommand = &cli.Command{
	Name:  "week",
	Usage: "print the week number and week period of a date",
	Flags: flags(calendarFlags, []cli.Flag{
		&cli.StringFlag{
			Name:     "date",
			Usage:    "the date (YYYY-MM-DD)",
			Required: true,
		},
	}),
	Action: week,
}

var presetsCommand = &cli.Command{
	Name:  "presets",
	Usage: "print the settings presets",
	Action: func(c *cli.Context) error {
		f := factory.NewSettingsFactory()
		out := make(map[string]factory.SettingsJSON)
		for _, name := range factory.PresetNames() {
			s, err := f.Preset(name)
			if err != nil {
				return err
			}
			out[name] = f.ToJSON(s)
		}
		return jsonOutput(c, out)
	},
}

// =============================================================================
// OUTPUT
// =============================================================================

type periodOutput struct {
	Start    calendar.Date `json:"start"`
	End      calendar.Date `json:"end"` // exclusive
	Days     int           `json:"days"`
	Fraction string        `json:"fraction"`
	Index    string        `json:"index"`
	Label    string        `json:"label"`
	Title    string        `json:"title,omitempty"`
	Selected bool          `json:"selected,omitempty"`
}

type partitionOutput struct {
	Granularity granularity.Type     `json:"granularity"`
	Calendar    calendar.Config      `json:"calendar"`
	Range       calendar.PeriodDates `json:"range"`
	Periods     []periodOutput       `json:"periods"`
	Selection   *selectionOutput     `json:"selection,omitempty"`
}

type selectionOutput struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Text       string `json:"text"`
}

type weekOutput struct {
	Date   calendar.Date        `json:"date"`
	Number int                  `json:"number"`
	Year   int                  `json:"year"`
	Period calendar.PeriodDates `json:"period"`
}

func jsonOutput(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// ACTIONS
// =============================================================================

// settingsFromFlags starts from --preset and applies the calendar flags
// through the settings factory, so the day clamp and validation match the
// server.
func settingsFromFlags(c *cli.Context) (timeline.Settings, error) {
	f := factory.NewSettingsFactory()
	doc, ok := factory.PresetJSON(c.String("preset"))
	if !ok {
		return timeline.Settings{}, fmt.Errorf("unknown preset %q", c.String("preset"))
	}
	var sj factory.SettingsJSON
	if err := json.Unmarshal([]byte(doc), &sj); err != nil {
		return timeline.Settings{}, err
	}

	if sj.Calendar == nil {
		sj.Calendar = &factory.CalendarJSON{}
	}
	if c.IsSet("week-start") {
		sj.Calendar.WeekStart = c.String("week-start")
	}
	if c.IsSet("fiscal-month") {
		sj.Calendar.FiscalStartMonth = c.Int("fiscal-month")
	}
	if c.IsSet("fiscal-day") {
		sj.Calendar.FiscalStartDay = c.Int("fiscal-day")
	}
	if c.Bool("iso") {
		sj.Calendar.WeekStandard = string(calendar.WeekStandardISO8601)
	}
	if c.IsSet("granularity") || sj.Granularity == "" {
		sj.Granularity = c.String("granularity")
	}
	return f.FromJSON(sj)
}

func dateFlag(c *cli.Context, name string) (calendar.Date, error) {
	d, err := calendar.ParseDate(c.String(name))
	if err != nil {
		return calendar.Date{}, fmt.Errorf("--%s: %w", name, err)
	}
	return d, nil
}

func buildTimeline(c *cli.Context) (*timeline.Timeline, error) {
	settings, err := settingsFromFlags(c)
	if err != nil {
		return nil, err
	}
	// forced selections depend on today; the CLI shows the plain partition
	settings.ForceSelection = timeline.ForceSelection{}

	from, err := dateFlag(c, "from")
	if err != nil {
		return nil, err
	}
	to, err := dateFlag(c, "to")
	if err != nil {
		return nil, err
	}
	return timeline.New(settings, []calendar.Date{from, to})
}

func describe(tl *timeline.Timeline, sel selection.Selection, withSelection bool) partitionOutput {
	periods := tl.Periods()
	strips := tl.Labels()
	cells := strips[len(strips)-1].Labels

	out := partitionOutput{
		Granularity: tl.Granularity(),
		Calendar:    tl.Settings().Calendar,
		Range:       tl.Range(),
		Periods:     make([]periodOutput, len(periods)),
	}
	for i, p := range periods {
		out.Periods[i] = periodOutput{
			Start:    p.StartDate,
			End:      p.EndDate,
			Days:     p.Days(),
			Fraction: p.Fraction.String(),
			Index:    p.Index.String(),
			Label:    cells[i].Text,
			Title:    cells[i].Title,
			Selected: withSelection && i >= sel.StartIndex && i <= sel.EndIndex,
		}
	}
	if withSelection {
		out.Selection = &selectionOutput{
			StartIndex: sel.StartIndex,
			EndIndex:   sel.EndIndex,
			Text:       tl.RangeText(),
		}
	}
	return out
}

func partition(c *cli.Context) error {
	tl, err := buildTimeline(c)
	if err != nil {
		return err
	}
	return jsonOutput(c, describe(tl, tl.Selection(), false))
}

func separate(c *cli.Context) error {
	tl, err := buildTimeline(c)
	if err != nil {
		return err
	}
	start, err := dateFlag(c, "select-from")
	if err != nil {
		return err
	}
	end, err := dateFlag(c, "select-to")
	if err != nil {
		return err
	}
	if err := tl.Select(start, end); err != nil {
		return err
	}
	return jsonOutput(c, describe(tl, tl.Selection(), true))
}

func week(c *cli.Context) error {
	settings, err := settingsFromFlags(c)
	if err != nil {
		return err
	}
	date, err := dateFlag(c, "date")
	if err != nil {
		return err
	}

	cal := calendar.NewFactory().Create(settings.Calendar.WeekStandard, settings.Calendar)
	w := cal.DetermineWeek(date)
	return jsonOutput(c, weekOutput{
		Date:   date,
		Number: w.Number,
		Year:   w.Year,
		Period: cal.WeekPeriod(date),
	})
}
