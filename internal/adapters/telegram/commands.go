package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/okian/danktime/internal/domain/chat"
	"github.com/okian/danktime/internal/domain/danktime"
)

// Command names understood by the router.
const (
	cmdStart       = "start"
	cmdStop        = "stop"
	cmdLeaderboard = "leaderboard"
	cmdReset       = "reset"
	cmdDankTimes   = "dank_times"
	cmdAddTime     = "add_time"
	cmdRemoveTime  = "remove_time"
	cmdSettings    = "settings"
	cmdSet         = "set"
	cmdHelp        = "help"
)

// Command is a parsed bot command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits "/name@bot arg..." into its parts. Commands addressed
// to a bot other than username yield ErrOtherBot; an empty username accepts
// every address.
func ParseCommand(text, username string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, ErrNotCommand
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if username != "" && !strings.EqualFold(target, username) {
			return Command{}, ErrOtherBot
		}
	}
	if name == "" {
		return Command{}, ErrNotCommand
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, nil
}

func atoi(field, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadNumber, field, raw)
	}
	return v, nil
}

func parseTime(args []string) (hour, minute int, err error) {
	if len(args) < 2 {
		return 0, 0, ErrUsage
	}
	if hour, err = atoi("hour", args[0]); err != nil {
		return 0, 0, err
	}
	if minute, err = atoi("minute", args[1]); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

// parseAddTime reads "HH MM POINTS TEXT...". Every word after the points is
// a separate text.
func parseAddTime(args []string) (*danktime.DankTime, error) {
	if len(args) < 4 {
		return nil, ErrUsage
	}
	hour, minute, err := parseTime(args)
	if err != nil {
		return nil, err
	}
	points, err := atoi("points", args[2])
	if err != nil {
		return nil, err
	}
	return danktime.New(hour, minute, args[3:], points)
}

// parseSet reads "NAME VALUE". The value may contain spaces.
func parseSet(args []string) (name, value string, err error) {
	if len(args) < 2 {
		return "", "", ErrUsage
	}
	return args[0], strings.Join(args[1:], " "), nil
}

func renderDankTimeList(b *strings.Builder, title string, list []*danktime.DankTime) {
	fmt.Fprintf(b, "<b>--- %s ---</b>\n", title)
	for _, d := range list {
		texts := make([]string, len(d.Texts))
		for i, t := range d.Texts {
			texts[i] = html.EscapeString(t)
		}
		fmt.Fprintf(b, "<b>%s</b>: %s (%d points)\n", d, strings.Join(texts, ", "), d.Points)
	}
}

func renderDankTimes(normal, random []*danktime.DankTime) string {
	if len(normal) == 0 && len(random) == 0 {
		return noDankTimesText
	}
	var b strings.Builder
	if len(normal) > 0 {
		renderDankTimeList(&b, "DANK TIMES", normal)
	}
	if len(random) > 0 {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		renderDankTimeList(&b, "TODAY'S RANDOM DANK TIMES", random)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSettings(values []chat.SettingValue) string {
	var b strings.Builder
	b.WriteString("<b>--- SETTINGS ---</b>")
	for _, v := range values {
		fmt.Fprintf(&b, "\n<b>%s</b>: %s", v.Name, html.EscapeString(v.Value))
	}
	return b.String()
}
