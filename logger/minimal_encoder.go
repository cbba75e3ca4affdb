package logger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;107m"
	colorName   = "\x1b[38;5;208m"
	colorWarn   = "\x1b[38;5;179m"
	colorError  = "\x1b[38;5;167m"
	colorFields = "\x1b[38;5;109m"
)

var bufferPool = buffer.NewPool()

// minimalEncoder implements a calm, compact console encoder
// Format: "13:04:35  WARN  d.manager  lint server not reachable  port=2222"
type minimalEncoder struct {
	zapcore.Encoder // Embedded for fields added through With()
	context         []zapcore.Field
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{
		Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	ctx := make([]zapcore.Field, len(enc.context))
	copy(ctx, enc.context)
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		context: ctx,
	}
}

// AddString and friends are reached through logger.With(); the common field
// types are captured here so context fields show up in console output.
func (enc *minimalEncoder) AddString(key, value string) {
	enc.context = append(enc.context, zap.String(key, value))
}

func (enc *minimalEncoder) AddInt64(key string, value int64) {
	enc.context = append(enc.context, zap.Int64(key, value))
}

func (enc *minimalEncoder) AddBool(key string, value bool) {
	enc.context = append(enc.context, zap.Bool(key, value))
}

func (enc *minimalEncoder) AddInt32(key string, value int32) {
	enc.context = append(enc.context, zap.Int32(key, value))
}

func (enc *minimalEncoder) AddUint64(key string, value uint64) {
	enc.context = append(enc.context, zap.Uint64(key, value))
}

func (enc *minimalEncoder) AddFloat64(key string, value float64) {
	enc.context = append(enc.context, zap.Float64(key, value))
}

func (enc *minimalEncoder) AddDuration(key string, value time.Duration) {
	enc.context = append(enc.context, zap.Duration(key, value))
}

func (enc *minimalEncoder) AddTime(key string, value time.Time) {
	enc.context = append(enc.context, zap.Time(key, value))
}

func (enc *minimalEncoder) AddReflected(key string, value interface{}) error {
	enc.context = append(enc.context, zap.Any(key, value))
	return nil
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(colorTime)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: omitted for INFO, the common case
	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(levelString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorName)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	final.AppendString("  ")
	final.AppendString(ent.Message)

	all := make([]zapcore.Field, 0, len(enc.context)+len(fields))
	all = append(all, enc.context...)
	all = append(all, fields...)
	if rendered := renderFields(all); rendered != "" {
		final.AppendString("  ")
		final.AppendString(colorFields)
		final.AppendString(rendered)
		final.AppendString(colorReset)
	}

	final.AppendString("\n")
	return final, nil
}

func levelString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.WarnLevel:
		return colorBold + colorWarn + "WARN" + colorReset
	default:
		return colorBold + colorError + level.CapitalString() + colorReset
	}
}

// abbreviateName shortens component names: daemon.manager -> d.manager
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// renderFields turns every field into key=value, sorted by key.
// No field is ever discarded.
func renderFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	m := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(m)
	}
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m.Fields[k]))
	}
	return strings.Join(parts, " ")
}
