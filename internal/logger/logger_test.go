package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *zapcore.Level
	}{
		{in: "debug", want: levelPtr(zapcore.DebugLevel)},
		{in: "INFO", want: levelPtr(zapcore.InfoLevel)},
		{in: " warn ", want: levelPtr(zapcore.WarnLevel)},
		{in: "error", want: levelPtr(zapcore.ErrorLevel)},
		{in: "fatal", want: nil},
		{in: "verbose", want: nil},
		{in: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseLevel(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.in, *got)
			case tt.want != nil && got == nil:
				t.Errorf("parseLevel(%q) = nil, want %v", tt.in, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, *got, *tt.want)
			}
		})
	}
}

func TestNopAndWith(t *testing.T) {
	l := With(Nop(), String("component", "test"), Int64("count", 3), Bool("dev", true))
	l.Info("discarded", Error(errors.New("boom")))
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync on nop logger returned %v", err)
	}
}

func levelPtr(l zapcore.Level) *zapcore.Level { return &l }
