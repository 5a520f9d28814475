package wits

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wellsteer/wellsteer/internal/config"
	"github.com/wellsteer/wellsteer/internal/metrics"
)

// pairSeparator is the level-0 field separator.
const pairSeparator = "\t"

// Parser converts raw wire messages into channel-keyed samples, validating
// channel ids against the configured schema.
type Parser struct {
	level  int
	schema map[int]config.ChannelDef // empty: accept every channel
}

// NewParser returns a Parser for the given WITS level and channel schema.
func NewParser(level int, defs []config.ChannelDef) *Parser {
	schema := make(map[int]config.ChannelDef, len(defs))
	for _, d := range defs {
		schema[d.ID] = d
	}
	return &Parser{level: level, schema: schema}
}

// Parse decodes one raw message into a Sample. Each channel=value pair is
// parsed independently: a malformed pair is skipped and logged, never
// discarding the rest of the message. Parse never fails past the message
// boundary — the worst input yields a sample with no channels.
func (p *Parser) Parse(raw []byte, now time.Time) Sample {
	sample := Sample{Timestamp: now, Channels: make(map[int]Value)}

	for _, pair := range strings.Split(string(raw), pairSeparator) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ch, val, ok := p.parsePair(pair)
		if !ok {
			metrics.PairsSkipped.Inc()
			continue
		}
		sample.Channels[ch] = val
	}
	return sample
}

// parsePair decodes a single "channel=value" pair.
func (p *Parser) parsePair(pair string) (int, Value, bool) {
	eq := strings.IndexByte(pair, '=')
	if eq < 0 {
		slog.Debug("wits: skipping pair without separator", "pair", pair)
		return 0, Value{}, false
	}

	ch, err := strconv.Atoi(strings.TrimSpace(pair[:eq]))
	if err != nil {
		slog.Debug("wits: skipping pair with bad channel id", "pair", pair)
		return 0, Value{}, false
	}

	var def config.ChannelDef
	if len(p.schema) > 0 {
		var known bool
		def, known = p.schema[ch]
		if !known {
			slog.Debug("wits: skipping unmapped channel", "channel", ch)
			return 0, Value{}, false
		}
	}

	text := strings.TrimSpace(pair[eq+1:])
	if num, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(num) && !math.IsInf(num, 0) {
		if def.Kind == "text" {
			return ch, Value{Text: text}, true
		}
		return ch, Value{Num: num, Numeric: true}, true
	}

	// Non-numeric values are retained as text, unless the schema demands a
	// numeric channel.
	if def.Kind == "numeric" {
		slog.Debug("wits: skipping non-numeric value on numeric channel",
			"channel", ch, "value", text)
		return 0, Value{}, false
	}
	return ch, Value{Text: text}, true
}
