package matrix

import (
	"fmt"
	"regexp"
	"strconv"
)

// Input/output ranges for the 8x8 matrix. Input 0 disconnects the output.
const (
	MinInput  = 0
	MaxInput  = 8
	MinOutput = 1
	MaxOutput = 8
)

// commandPattern allow-lists the verbs the gateway may send to the device.
// Anything else is rejected before touching the wire.
var commandPattern = regexp.MustCompile(`^(SET SW|GET MP)`)

// routingLine matches one routing report line, e.g. "MP in3 out7".
// The device is inconsistent about case, so the match is case-insensitive.
var routingLine = regexp.MustCompile(`(?i)MP\s+in(\d+)\s+out(\d+)`)

// SwitchCommand builds the wire command routing input to output.
// Input 0 switches the output off.
func SwitchCommand(input, output int) (string, error) {
	if input < MinInput || input > MaxInput {
		return "", fmt.Errorf("%w: input %d out of range %d-%d", ErrInvalidParameter, input, MinInput, MaxInput)
	}
	if output < MinOutput || output > MaxOutput {
		return "", fmt.Errorf("%w: output %d out of range %d-%d", ErrInvalidParameter, output, MinOutput, MaxOutput)
	}
	return fmt.Sprintf("SET SW in%d out%d\r\n", input, output), nil
}

// QueryCommand builds the wire command requesting the full routing table.
func QueryCommand() string {
	return "GET MP all\r\n"
}

// ValidCommand reports whether a command matches the allow-listed verbs.
func ValidCommand(command string) bool {
	return commandPattern.MatchString(command)
}

// ParseRouting extracts the routing table from raw device output.
//
// The reply is scanned for "MP in<N> out<M>" fragments; anything else
// (echoes, prompts, banners) is ignored. Lines with out-of-range numbers
// are skipped. When the device reports an output more than once, the
// last report wins.
//
// The returned map is keyed by output: routing[output] = input.
func ParseRouting(raw string) map[int]int {
	routing := make(map[int]int)

	for _, m := range routingLine.FindAllStringSubmatch(raw, -1) {
		input, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		output, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if input < MinInput || input > MaxInput {
			continue
		}
		if output < MinOutput || output > MaxOutput {
			continue
		}
		routing[output] = input
	}

	return routing
}
