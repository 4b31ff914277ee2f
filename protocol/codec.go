package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"creaturenet/creature"
)

var (
	// ErrUnknownType 行首前缀无法识别
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed 字段缺失或数值解析失败
	ErrMalformed = errors.New("malformed message")
)

// DecodeError 单行解码失败
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Encode 序列化单条消息并追加分隔符
func Encode(m Message) []byte {
	var b strings.Builder
	writeMessage(&b, m)
	return []byte(b.String())
}

// EncodeAll 将多条消息拼成一个数据报载荷；没有消息时返回 nil
func EncodeAll(msgs []Message) []byte {
	if len(msgs) == 0 {
		return nil
	}
	var b strings.Builder
	for _, m := range msgs {
		writeMessage(&b, m)
	}
	return []byte(b.String())
}

func writeMessage(b *strings.Builder, m Message) {
	b.WriteString(string(m.Kind()))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(m.PlayerID()))
	switch v := m.(type) {
	case PlayerPositions:
		for _, p := range v.Positions {
			b.WriteByte(':')
			b.WriteString(formatFloat(p.X))
			b.WriteByte(',')
			b.WriteString(formatFloat(p.Y))
		}
	case PlayerCreature:
		b.WriteByte(':')
		b.WriteString(v.Type)
	}
	b.WriteString(Delimiter)
}

// formatFloat 最短可逆表示，保证可精确往返
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// DecodePayload 按分隔符切分并逐行解码。
// 坏行只影响自身：返回成功解码的消息，以及每个坏行对应的 *DecodeError。
func DecodePayload(payload []byte) ([]Message, []error) {
	var (
		msgs []Message
		errs []error
	)
	for _, line := range strings.Split(string(payload), Delimiter) {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, err := DecodeLine(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, errs
}

// DecodeLine 解码单行（不含分隔符）
func DecodeLine(line string) (Message, error) {
	m, err := decodeLine(line)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	return m, nil
}

func decodeLine(line string) (Message, error) {
	prefix, rest, ok := strings.Cut(line, ":")
	if !ok {
		return nil, ErrUnknownType
	}
	switch Kind(prefix) {
	case KindPlayerID:
		id, err := parseID(rest)
		if err != nil {
			return nil, err
		}
		return PlayerIDMsg{ID: id}, nil
	case KindPlayerLeave:
		id, err := parseID(rest)
		if err != nil {
			return nil, err
		}
		return PlayerLeave{ID: id}, nil
	case KindPlayerPositions:
		return decodePositions(rest)
	case KindPlayerCreature:
		idText, typ, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, malformed("missing creature type")
		}
		id, err := parseID(idText)
		if err != nil {
			return nil, err
		}
		typ = strings.TrimSpace(typ)
		if typ == "" {
			return nil, malformed("empty creature type")
		}
		return PlayerCreature{ID: id, Type: typ}, nil
	default:
		return nil, ErrUnknownType
	}
}

func decodePositions(rest string) (Message, error) {
	fields := strings.Split(rest, ":")
	id, err := parseID(fields[0])
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, malformed("no positions")
	}
	positions := make([]creature.Vec2, 0, len(fields)-1)
	for _, f := range fields[1:] {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, malformed("position %q", f)
		}
		x, err := parseFloat(xs)
		if err != nil {
			return nil, err
		}
		y, err := parseFloat(ys)
		if err != nil {
			return nil, err
		}
		positions = append(positions, creature.Vec2{X: x, Y: y})
	}
	return PlayerPositions{ID: id, Positions: positions}, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, malformed("id %q", s)
	}
	if id < 0 {
		return 0, malformed("negative id %d", id)
	}
	return id, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, malformed("coordinate %q", s)
	}
	return f, nil
}

// Batch 按消息边界把消息拼成若干载荷，每个载荷不超过 limit 字节。
// 单条消息本身超过 limit 时独占一个载荷。limit<=0 表示不拆分。
func Batch(msgs []Message, limit int) [][]byte {
	if len(msgs) == 0 {
		return nil
	}
	var (
		out [][]byte
		cur []byte
	)
	for _, m := range msgs {
		b := Encode(m)
		if limit > 0 && len(cur) > 0 && len(cur)+len(b) > limit {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, b...)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
