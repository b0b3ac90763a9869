// Package command defines the closed set of operations understood by the
// magic server and the parser that turns a text line into one of them.
//
// Grammar (keywords are case-insensitive, tokens whitespace-delimited):
//
//	SUMMON <key> AS <value...>
//	CONJURE <key>
//	DISPEL <key>
//	SEND TO <address> [value...]
//	INCANT <lua script...>
//
// Anything else parses to Unknown. Parse never fails.
package command

// Command is one parsed operation. The set of implementations is closed:
// only the types in this package satisfy it.
type Command interface {
	// Name returns the upper-case keyword of the command
	Name() string

	isCommand()
}

// Summon stores Value under Key
type Summon struct {
	Key   string
	Value string
}

// Conjure reads the value stored under Key
type Conjure struct {
	Key string
}

// Dispel removes Key
type Dispel struct {
	Key string
}

// SendTo forwards a payload to Target. In reflect mode the payload is the
// last aggregate and Value is ignored.
type SendTo struct {
	Target string
	Value  string
}

// Incant runs a Lua script against the store
type Incant struct {
	Script string
}

// Unknown is any line that matches no other command
type Unknown struct{}

func (Summon) Name() string  { return "SUMMON" }
func (Conjure) Name() string { return "CONJURE" }
func (Dispel) Name() string  { return "DISPEL" }
func (SendTo) Name() string  { return "SEND TO" }
func (Incant) Name() string  { return "INCANT" }
func (Unknown) Name() string { return "UNKNOWN" }

func (Summon) isCommand()  {}
func (Conjure) isCommand() {}
func (Dispel) isCommand()  {}
func (SendTo) isCommand()  {}
func (Incant) isCommand()  {}
func (Unknown) isCommand() {}
