package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chosenoffset/procview/pkg/procview/parser"
)

// StatFieldCount is the number of fields after the command name in
// /proc/[pid]/stat on current kernels.
const StatFieldCount = 50

// State is the single-letter scheduler state of a process.
type State uint8

const (
	Sleeping  State = iota + 1 // S
	Idle                       // I
	Running                    // R
	DiskSleep                  // D
	Zombie                     // Z
	Traced                     // T
	Paging                     // W
)

var stateLetters = map[byte]State{
	'S': Sleeping,
	'I': Idle,
	'R': Running,
	'D': DiskSleep,
	'Z': Zombie,
	'T': Traced,
	'W': Paging,
}

// ParseState maps a single state letter to its State.
func ParseState(text string) (State, error) {
	if len(text) != 1 {
		return 0, UnknownState
	}
	s, ok := stateLetters[text[0]]
	if !ok {
		return 0, UnknownState
	}
	return s, nil
}

func (s State) String() string {
	switch s {
	case Sleeping:
		return "Sleeping"
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case DiskSleep:
		return "DiskSleep"
	case Zombie:
		return "Zombie"
	case Traced:
		return "Traced"
	case Paging:
		return "Paging"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Letter returns the procfs letter for s.
func (s State) Letter() string {
	for c, st := range stateLetters {
		if st == s {
			return string(c)
		}
	}
	return "?"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a state name as produced by MarshalText or a
// procfs letter.
func (s *State) UnmarshalText(text []byte) error {
	name := string(text)
	for _, st := range stateLetters {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	st, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ProcessStat is one decoded /proc/[pid]/stat line. Field names and units
// follow proc(5); times are in clock ticks and sizes in bytes or pages as
// the kernel reports them.
type ProcessStat struct {
	PID                 int    `json:"pid" yaml:"pid"`
	Comm                string `json:"comm" yaml:"comm"`
	State               State  `json:"state" yaml:"state"`
	PPID                int64  `json:"ppid" yaml:"ppid"`
	PGRP                int64  `json:"pgrp" yaml:"pgrp"`
	Session             int64  `json:"session" yaml:"session"`
	TTY                 int64  `json:"tty_nr" yaml:"tty_nr"`
	TPGID               int64  `json:"tpgid" yaml:"tpgid"`
	Flags               uint64 `json:"flags" yaml:"flags"`
	MinFlt              uint64 `json:"minflt" yaml:"minflt"`
	CMinFlt             uint64 `json:"cminflt" yaml:"cminflt"`
	MajFlt              uint64 `json:"majflt" yaml:"majflt"`
	CMajFlt             uint64 `json:"cmajflt" yaml:"cmajflt"`
	UTime               uint64 `json:"utime" yaml:"utime"`
	STime               uint64 `json:"stime" yaml:"stime"`
	CUTime              int64  `json:"cutime" yaml:"cutime"`
	CSTime              int64  `json:"cstime" yaml:"cstime"`
	Priority            int64  `json:"priority" yaml:"priority"`
	Nice                int64  `json:"nice" yaml:"nice"`
	NumThreads          int64  `json:"num_threads" yaml:"num_threads"`
	ItRealValue         int64  `json:"itrealvalue" yaml:"itrealvalue"`
	StartTime           uint64 `json:"starttime" yaml:"starttime"`
	VSize               uint64 `json:"vsize" yaml:"vsize"`
	RSS                 int64  `json:"rss" yaml:"rss"`
	RSSLimit            uint64 `json:"rsslim" yaml:"rsslim"`
	StartCode           uint64 `json:"startcode" yaml:"startcode"`
	EndCode             uint64 `json:"endcode" yaml:"endcode"`
	StartStack          uint64 `json:"startstack" yaml:"startstack"`
	KStkESP             uint64 `json:"kstkesp" yaml:"kstkesp"`
	KStkEIP             uint64 `json:"kstkeip" yaml:"kstkeip"`
	Signal              uint64 `json:"signal" yaml:"signal"`
	Blocked             uint64 `json:"blocked" yaml:"blocked"`
	SigIgnore           uint64 `json:"sigignore" yaml:"sigignore"`
	SigCatch            uint64 `json:"sigcatch" yaml:"sigcatch"`
	WChan               uint64 `json:"wchan" yaml:"wchan"`
	NSwap               uint64 `json:"nswap" yaml:"nswap"`
	CNSwap              uint64 `json:"cnswap" yaml:"cnswap"`
	ExitSignal          int64  `json:"exit_signal" yaml:"exit_signal"`
	Processor           int64  `json:"processor" yaml:"processor"`
	RTPriority          uint64 `json:"rt_priority" yaml:"rt_priority"`
	Policy              uint64 `json:"policy" yaml:"policy"`
	DelayAcctBlkIOTicks uint64 `json:"delayacct_blkio_ticks" yaml:"delayacct_blkio_ticks"`
	GuestTime           uint64 `json:"guest_time" yaml:"guest_time"`
	CGuestTime          int64  `json:"cguest_time" yaml:"cguest_time"`
	StartData           uint64 `json:"start_data" yaml:"start_data"`
	EndData             uint64 `json:"end_data" yaml:"end_data"`
	StartBrk            uint64 `json:"start_brk" yaml:"start_brk"`
	ArgStart            uint64 `json:"arg_start" yaml:"arg_start"`
	ArgEnd              uint64 `json:"arg_end" yaml:"arg_end"`
	EnvStart            uint64 `json:"env_start" yaml:"env_start"`
	EnvEnd              uint64 `json:"env_end" yaml:"env_end"`
	ExitCode            int64  `json:"exit_code" yaml:"exit_code"`

	// NumFields is how many fields after the command name were decoded.
	// Older kernels report fewer; the rest stay zero.
	NumFields int `json:"-" yaml:"-"`
}

type statField struct {
	name string
	set  func(p *ProcessStat, text string) error
}

func unsigned(get func(*ProcessStat) *uint64) func(*ProcessStat, string) error {
	return func(p *ProcessStat, text string) error {
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return ExpectedInteger
		}
		*get(p) = v
		return nil
	}
}

func signed(get func(*ProcessStat) *int64) func(*ProcessStat, string) error {
	return func(p *ProcessStat, text string) error {
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return ExpectedInteger
		}
		*get(p) = v
		return nil
	}
}

// statLayout lists the fields after the command name in kernel order.
var statLayout = [StatFieldCount]statField{
	{"state", func(p *ProcessStat, text string) error {
		s, err := ParseState(text)
		p.State = s
		return err
	}},
	{"ppid", signed(func(p *ProcessStat) *int64 { return &p.PPID })},
	{"pgrp", signed(func(p *ProcessStat) *int64 { return &p.PGRP })},
	{"session", signed(func(p *ProcessStat) *int64 { return &p.Session })},
	{"tty_nr", signed(func(p *ProcessStat) *int64 { return &p.TTY })},
	{"tpgid", signed(func(p *ProcessStat) *int64 { return &p.TPGID })},
	{"flags", unsigned(func(p *ProcessStat) *uint64 { return &p.Flags })},
	{"minflt", unsigned(func(p *ProcessStat) *uint64 { return &p.MinFlt })},
	{"cminflt", unsigned(func(p *ProcessStat) *uint64 { return &p.CMinFlt })},
	{"majflt", unsigned(func(p *ProcessStat) *uint64 { return &p.MajFlt })},
	{"cmajflt", unsigned(func(p *ProcessStat) *uint64 { return &p.CMajFlt })},
	{"utime", unsigned(func(p *ProcessStat) *uint64 { return &p.UTime })},
	{"stime", unsigned(func(p *ProcessStat) *uint64 { return &p.STime })},
	{"cutime", signed(func(p *ProcessStat) *int64 { return &p.CUTime })},
	{"cstime", signed(func(p *ProcessStat) *int64 { return &p.CSTime })},
	{"priority", signed(func(p *ProcessStat) *int64 { return &p.Priority })},
	{"nice", signed(func(p *ProcessStat) *int64 { return &p.Nice })},
	{"num_threads", signed(func(p *ProcessStat) *int64 { return &p.NumThreads })},
	{"itrealvalue", signed(func(p *ProcessStat) *int64 { return &p.ItRealValue })},
	{"starttime", unsigned(func(p *ProcessStat) *uint64 { return &p.StartTime })},
	{"vsize", unsigned(func(p *ProcessStat) *uint64 { return &p.VSize })},
	{"rss", signed(func(p *ProcessStat) *int64 { return &p.RSS })},
	{"rsslim", unsigned(func(p *ProcessStat) *uint64 { return &p.RSSLimit })},
	{"startcode", unsigned(func(p *ProcessStat) *uint64 { return &p.StartCode })},
	{"endcode", unsigned(func(p *ProcessStat) *uint64 { return &p.EndCode })},
	{"startstack", unsigned(func(p *ProcessStat) *uint64 { return &p.StartStack })},
	{"kstkesp", unsigned(func(p *ProcessStat) *uint64 { return &p.KStkESP })},
	{"kstkeip", unsigned(func(p *ProcessStat) *uint64 { return &p.KStkEIP })},
	{"signal", unsigned(func(p *ProcessStat) *uint64 { return &p.Signal })},
	{"blocked", unsigned(func(p *ProcessStat) *uint64 { return &p.Blocked })},
	{"sigignore", unsigned(func(p *ProcessStat) *uint64 { return &p.SigIgnore })},
	{"sigcatch", unsigned(func(p *ProcessStat) *uint64 { return &p.SigCatch })},
	{"wchan", unsigned(func(p *ProcessStat) *uint64 { return &p.WChan })},
	{"nswap", unsigned(func(p *ProcessStat) *uint64 { return &p.NSwap })},
	{"cnswap", unsigned(func(p *ProcessStat) *uint64 { return &p.CNSwap })},
	{"exit_signal", signed(func(p *ProcessStat) *int64 { return &p.ExitSignal })},
	{"processor", signed(func(p *ProcessStat) *int64 { return &p.Processor })},
	{"rt_priority", unsigned(func(p *ProcessStat) *uint64 { return &p.RTPriority })},
	{"policy", unsigned(func(p *ProcessStat) *uint64 { return &p.Policy })},
	{"delayacct_blkio_ticks", unsigned(func(p *ProcessStat) *uint64 { return &p.DelayAcctBlkIOTicks })},
	{"guest_time", unsigned(func(p *ProcessStat) *uint64 { return &p.GuestTime })},
	{"cguest_time", signed(func(p *ProcessStat) *int64 { return &p.CGuestTime })},
	{"start_data", unsigned(func(p *ProcessStat) *uint64 { return &p.StartData })},
	{"end_data", unsigned(func(p *ProcessStat) *uint64 { return &p.EndData })},
	{"start_brk", unsigned(func(p *ProcessStat) *uint64 { return &p.StartBrk })},
	{"arg_start", unsigned(func(p *ProcessStat) *uint64 { return &p.ArgStart })},
	{"arg_end", unsigned(func(p *ProcessStat) *uint64 { return &p.ArgEnd })},
	{"env_start", unsigned(func(p *ProcessStat) *uint64 { return &p.EnvStart })},
	{"env_end", unsigned(func(p *ProcessStat) *uint64 { return &p.EnvEnd })},
	{"exit_code", signed(func(p *ProcessStat) *int64 { return &p.ExitCode })},
}

// DecodePositional decodes a /proc/[pid]/stat line carrying fieldCount
// fields after the command name. Pass StatFieldCount for current kernels; a
// smaller count decodes the leading fields of the layout and leaves the rest
// zero. A line with any other number of fields fails with ShapeMismatch.
func DecodePositional(line string, fieldCount int) (*ProcessStat, error) {
	if fieldCount < 1 || fieldCount > StatFieldCount {
		return nil, &Error{
			Kind:   ShapeMismatch,
			Offset: -1,
			Text:   fmt.Sprintf("field count %d outside 1..%d", fieldCount, StatFieldCount),
		}
	}

	ts, err := parser.Tokenize(parser.Positional(fieldCount), line)
	if err != nil {
		return nil, fromParser(err, 0)
	}

	p := &ProcessStat{NumFields: fieldCount}

	tok, _ := ts.Next()
	pidText := ts.Text(tok)
	pid, err := strconv.Atoi(pidText)
	if err != nil {
		return nil, newError(ExpectedInteger, tok.Start, "pid", pidText)
	}
	p.PID = pid

	tok, _ = ts.Next()
	p.Comm = strings.Clone(ts.Text(tok))

	for i := 0; i < fieldCount; i++ {
		tok, ok := ts.Next()
		if !ok || tok.Kind != parser.FIELD {
			return nil, newError(EOF, len(line), statLayout[i].name, "")
		}
		text := ts.Text(tok)
		if err := statLayout[i].set(p, text); err != nil {
			if k, ok := err.(Kind); ok {
				return nil, newError(k, tok.Start, statLayout[i].name, text)
			}
			return nil, err
		}
	}

	if err := trailing(ts, 0); err != nil {
		return nil, err
	}
	return p, nil
}
