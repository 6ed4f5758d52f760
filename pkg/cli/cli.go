// Package cli is the small flag framework the frontend commands share:
// long/short flags, special-prefix flags (-DNAME=VALUE), and grouped
// toggle flags (-W<warning>/-Wno-<warning>) with generated help output.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value %q: %w", s, err)
	}
	*v.p = val || s == ""
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

// GroupEntry is one toggle inside a flag group; Prefix+Name enables it,
// Prefix+"no-"+Name disables it.
type GroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagGroup struct {
	Name    string
	Entries []GroupEntry
}

type FlagSet struct {
	name          string
	flags         map[string]*Flag
	shorthands    map[string]*Flag
	specialPrefix map[string]*Flag
	args          []string
	groups        []FlagGroup
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:          name,
		flags:         make(map[string]*Flag),
		shorthands:    make(map[string]*Flag),
		specialPrefix: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand string, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, name, shorthand, usage, "", expectedType)
}

// Special registers a prefix flag: -Dfoo=1 collects "foo=1".
func (f *FlagSet) Special(p *[]string, prefix, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, prefix, "", usage, "", expectedType)
	f.specialPrefix[prefix] = f.flags[prefix]
}

// AddGroup registers toggle pairs for every entry and remembers the group
// for help rendering.
func (f *FlagSet) AddGroup(name string, entries []GroupEntry) {
	for i := range entries {
		if entries[i].Enabled != nil {
			f.Bool(entries[i].Enabled, entries[i].Prefix+entries[i].Name, "", false, entries[i].Usage)
		}
		if entries[i].Disabled != nil {
			f.Bool(entries[i].Disabled, entries[i].Prefix+"no-"+entries[i].Name, "", false,
				"Disable '"+entries[i].Name+"'")
		}
	}
	f.groups = append(f.groups, FlagGroup{Name: name, Entries: entries})
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value,
		DefValue: defValue, ExpectedType: expectedType}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "--") {
			if err := f.parseLongFlag(arg, arguments, &i); err != nil {
				return err
			}
			continue
		}
		if err := f.parseShortFlag(arg, arguments, &i); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) parseLongFlag(arg string, arguments []string, i *int) error {
	parts := strings.SplitN(arg[2:], "=", 2)
	name := parts[0]
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	flag, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	if len(parts) == 2 {
		return flag.Value.Set(parts[1])
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: --%s", name)
	}
	*i++
	return flag.Value.Set(arguments[*i])
}

func (f *FlagSet) parseShortFlag(arg string, arguments []string, i *int) error {
	// Single-dash long names (-Wno-extra) first, then prefix flags, then
	// classic shorthands.
	name := arg[1:]
	if idx := strings.IndexByte(name, '='); idx >= 0 {
		name = name[:idx]
	}
	if flag, ok := f.flags[name]; ok {
		if parts := strings.SplitN(arg[1:], "=", 2); len(parts) == 2 {
			return flag.Value.Set(parts[1])
		}
		if _, isBool := flag.Value.(*boolValue); isBool {
			return flag.Value.Set("")
		}
		if *i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: -%s", name)
		}
		*i++
		return flag.Value.Set(arguments[*i])
	}

	for prefix, flag := range f.specialPrefix {
		if strings.HasPrefix(arg, "-"+prefix) && len(arg) > len(prefix)+1 {
			return flag.Value.Set(arg[len(prefix)+1:])
		}
	}

	shorthand := arg[1:2]
	flag, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown flag: -%s", shorthand)
	}
	if _, isBool := flag.Value.(*boolValue); isBool {
		return flag.Value.Set("")
	}
	value := arg[2:]
	if value == "" {
		if *i+1 >= len(arguments) {
			return fmt.Errorf("flag needs an argument: -%s", shorthand)
		}
		*i++
		value = arguments[*i]
	}
	return flag.Value.Set(value)
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.printUsage(os.Stderr)
		return err
	}
	if help {
		a.printHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, flag := range a.FlagSet.flags {
		if _, special := a.FlagSet.specialPrefix[flag.Name]; special {
			continue
		}
		if a.isGroupFlag(flag.Name) {
			continue
		}
		flags = append(flags, flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.groups {
		for _, entry := range group.Entries {
			if name == entry.Prefix+entry.Name || name == entry.Prefix+"no-"+entry.Name {
				return true
			}
		}
	}
	return false
}

func (a *App) printUsage(w *os.File) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "Run '%s --help' for all available options.\n", a.Name)
}

func (a *App) printHelp(w *os.File) {
	width := terminalWidth()
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		fmt.Fprintln(w)
		for _, line := range wrapText(a.Description, width-2) {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	flags := a.optionFlags()
	maxWidth := 0
	for _, flag := range flags {
		if l := len(formatFlag(flag)); l > maxWidth {
			maxWidth = l
		}
	}

	fmt.Fprintln(w, "\nOptions")
	for _, flag := range flags {
		printEntry(w, formatFlag(flag), flag.Usage, maxWidth, width)
	}

	for _, group := range a.FlagSet.groups {
		fmt.Fprintf(w, "\n%s\n", group.Name)
		entries := append([]GroupEntry(nil), group.Entries...)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, entry := range entries {
			label := fmt.Sprintf("-%s[no-]%s", entry.Prefix, entry.Name)
			printEntry(w, label, entry.Usage, maxWidth, width)
		}
	}

	if len(a.FlagSet.specialPrefix) > 0 {
		fmt.Fprintln(w, "\nPrefix options")
		var prefixes []string
		for prefix := range a.FlagSet.specialPrefix {
			prefixes = append(prefixes, prefix)
		}
		sort.Strings(prefixes)
		for _, prefix := range prefixes {
			flag := a.FlagSet.specialPrefix[prefix]
			label := fmt.Sprintf("-%s<%s>", prefix, flag.ExpectedType)
			printEntry(w, label, flag.Usage, maxWidth, width)
		}
	}
}

func formatFlag(flag *Flag) string {
	var sb strings.Builder
	_, isBool := flag.Value.(*boolValue)
	if flag.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s, ", flag.Shorthand)
	}
	fmt.Fprintf(&sb, "--%s", flag.Name)
	if !isBool && flag.ExpectedType != "" {
		fmt.Fprintf(&sb, " <%s>", flag.ExpectedType)
	}
	return sb.String()
}

func printEntry(w *os.File, label, usage string, labelWidth, termWidth int) {
	avail := termWidth - labelWidth - 4
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	fmt.Fprintf(w, "  %-*s %s\n", labelWidth, label, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "  %-*s %s\n", labelWidth, "", line)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > maxWidth {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
