package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
	}{
		{"valid string", "name", "test", false},
		{"empty string", "name", "", true},
		{"whitespace only", "name", "   ", true},
		{"tab only", "name", "\t", true},
		{"newline only", "name", "\n", true},
		{"valid with spaces", "name", " test ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required(tt.field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRequired) {
				t.Errorf("Required() error should wrap ErrRequired")
			}
		})
	}
}

func TestPositive(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"positive", 1, false},
		{"large positive", 1000, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Positive("field", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Positive() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	if err := AtLeast("breaker.max_probes", 1, 1); err != nil {
		t.Errorf("AtLeast(1, 1) = %v, want nil", err)
	}
	err := AtLeast("breaker.max_probes", 0, 1)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("AtLeast(0, 1) = %v, want ErrOutOfRange", err)
	}
	if err.Error() != "breaker.max_probes: must be at least 1" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNonNegative(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"positive", 1, false},
		{"zero", 0, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NonNegative("field", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NonNegative() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNonNegativeFloat(t *testing.T) {
	if err := NonNegative("target.create_rate", 0.5); err != nil {
		t.Errorf("NonNegative(0.5) = %v, want nil", err)
	}
	if err := NonNegative("target.create_rate", -0.1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("NonNegative(-0.1) = %v, want ErrOutOfRange", err)
	}
}

func TestDurations(t *testing.T) {
	tests := []struct {
		name        string
		d           time.Duration
		nonNegative bool
		positive    bool
	}{
		{"positive", time.Second, true, true},
		{"zero", 0, true, false},
		{"negative", -time.Millisecond, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NonNegativeDuration("d", tt.d); (err == nil) != tt.nonNegative {
				t.Errorf("NonNegativeDuration(%v) = %v", tt.d, err)
			}
			if err := PositiveDuration("d", tt.d); (err == nil) != tt.positive {
				t.Errorf("PositiveDuration(%v) = %v", tt.d, err)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	if err := OneOf("target.kind", "redis", "tcp", "redis", "mysql"); err != nil {
		t.Errorf("OneOf(redis) = %v, want nil", err)
	}

	err := OneOf("target.kind", "ftp", "tcp", "redis", "mysql")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("OneOf(ftp) = %v, want ErrInvalidFormat", err)
	}
	if !strings.Contains(err.Error(), `"ftp" is not one of tcp, redis, mysql`) {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid localhost", "127.0.0.1:8080", false},
		{"valid hostname", "cache:6379", false},
		{"valid ipv6", "[::1]:8080", false},
		{"empty", "", true},
		{"no port", "127.0.0.1", true},
		{"no host", ":8080", false}, // This is actually valid in Go
		{"invalid format", "not-a-hostport", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HostPort("address", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("HostPort() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAll(t *testing.T) {
	t.Run("all pass", func(t *testing.T) {
		err := All(
			func() error { return nil },
			func() error { return nil },
		)
		if err != nil {
			t.Errorf("All() = %v, want nil", err)
		}
	})

	t.Run("first fails", func(t *testing.T) {
		expectedErr := errors.New("first error")
		err := All(
			func() error { return expectedErr },
			func() error { return nil },
		)
		if err != expectedErr {
			t.Errorf("All() = %v, want %v", err, expectedErr)
		}
	})

	t.Run("second fails", func(t *testing.T) {
		expectedErr := errors.New("second error")
		err := All(
			func() error { return nil },
			func() error { return expectedErr },
		)
		if err != expectedErr {
			t.Errorf("All() = %v, want %v", err, expectedErr)
		}
	})
}

func TestErrors(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		var errs Errors
		if errs.HasErrors() {
			t.Error("empty Errors should not HasErrors")
		}
		if errs.First() != nil {
			t.Error("empty Errors.First() should be nil")
		}
		if errs.Error() != "" {
			t.Error("empty Errors.Error() should be empty string")
		}
	})

	t.Run("add nil is ignored", func(t *testing.T) {
		var errs Errors
		errs.Add(nil)
		if errs.HasErrors() {
			t.Error("adding nil should not create error")
		}
	})

	t.Run("single error", func(t *testing.T) {
		var errs Errors
		e := errors.New("test error")
		errs.Add(e)

		if !errs.HasErrors() {
			t.Error("should HasErrors")
		}
		if errs.First() != e {
			t.Error("First() should return the error")
		}
		if errs.Error() != "test error" {
			t.Errorf("Error() = %q, want %q", errs.Error(), "test error")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		var errs Errors
		errs.Add(errors.New("first"))
		errs.Add(errors.New("second"))

		if len(errs) != 2 {
			t.Errorf("len(errs) = %d, want 2", len(errs))
		}
		if !strings.Contains(errs.Error(), "first") || !strings.Contains(errs.Error(), "second") {
			t.Errorf("Error() should contain both errors: %s", errs.Error())
		}
	})

	t.Run("unwrap and err", func(t *testing.T) {
		var errs Errors
		if errs.Err() != nil {
			t.Error("empty Errors.Err() should be nil")
		}
		errs.Add(Required("target.address", ""))
		errs.Add(Positive("pool.max_open", 0))

		err := errs.Err()
		if !errors.Is(err, ErrRequired) || !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Err() should match every collected sentinel: %v", err)
		}
		var r *Result
		if !errors.As(err, &r) || r.Field != "target.address" {
			t.Errorf("errors.As should find the first Result, got %+v", r)
		}
	})
}

func TestResult(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		r := NewResult("name", "is required", ErrRequired)
		if r.Error() != "name: is required" {
			t.Errorf("Error() = %q, want %q", r.Error(), "name: is required")
		}
		if !errors.Is(r, ErrRequired) {
			t.Error("should wrap ErrRequired")
		}
	})

	t.Run("without field", func(t *testing.T) {
		r := NewResult("", "general error", ErrInvalidFormat)
		if r.Error() != "general error" {
			t.Errorf("Error() = %q, want %q", r.Error(), "general error")
		}
	})
}
