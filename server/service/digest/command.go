package digest

import (
	"regexp"
	"strconv"
	"strings"
)

// Flow identifies which digest path a command runs.
type Flow string

const (
	FlowForward Flow = "forward"
	FlowDirect  Flow = "direct"
)

// Command names as typed in chat.
const (
	CommandForward = "/分析聊天记录"
	CommandDirect  = "/现场分析"
)

// leadingCQ matches CQ codes (mentions, replies) that clients put before the command text.
var leadingCQ = regexp.MustCompile(`^(\s*\[CQ:[^\]]*\])+\s*`)

// Command is a parsed digest command.
type Command struct {
	Flow Flow
	Args []string
}

// ParseCommand recognizes a digest command at the start of text.
func ParseCommand(text string) (*Command, bool) {
	fields := strings.Fields(leadingCQ.ReplaceAllString(text, ""))
	if len(fields) == 0 {
		return nil, false
	}

	var flow Flow
	switch fields[0] {
	case CommandForward:
		flow = FlowForward
	case CommandDirect:
		flow = FlowDirect
	default:
		return nil, false
	}
	return &Command{Flow: flow, Args: fields[1:]}, true
}

// Count returns the first argument as a positive message count.
func (c *Command) Count() (int, bool) {
	if len(c.Args) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// DebugFlag returns the second argument, or "" when absent.
func (c *Command) DebugFlag() string {
	if len(c.Args) < 2 {
		return ""
	}
	return c.Args[1]
}
