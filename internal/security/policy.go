// Package security implements the Security Policy and approval gate of
// SPEC_FULL.md §4.4, grounded on the teacher's internal/security (audit
// findings/severity style) package (haasonsaas/nexus), generalized to the
// shell-command risk classifier the spec describes. The Full-mode action
// limiter is built on golang.org/x/time/rate rather than a hand-rolled
// timestamp window, matching the rest of the pack's preference for an
// ecosystem token-bucket limiter over bespoke sliding-window bookkeeping.
package security

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Autonomy is the deployment's permitted validation outcomes.
type Autonomy string

const (
	AutonomyReadOnly   Autonomy = "read_only"
	AutonomySupervised Autonomy = "supervised"
	AutonomyFull       Autonomy = "full"
)

// Risk is a shell command's classified risk tier.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// DecisionKind tags the validate_command outcome.
type DecisionKind string

const (
	DecisionAllowed       DecisionKind = "allowed"
	DecisionDenied        DecisionKind = "denied"
	DecisionNeedsApproval DecisionKind = "needs_approval"
)

// Decision is the result of validate_command / validate_path.
type Decision struct {
	Kind   DecisionKind
	Reason string // populated for Denied
}

func allowed() Decision  { return Decision{Kind: DecisionAllowed} }
func needsApproval() Decision { return Decision{Kind: DecisionNeedsApproval} }
func denied(reason string) Decision {
	return Decision{Kind: DecisionDenied, Reason: reason}
}

var lowRisk = map[string]bool{
	"ls": true, "cat": true, "grep": true, "git": true, "echo": true, "pwd": true,
	"which": true, "file": true, "head": true, "tail": true, "wc": true, "sort": true,
	"uniq": true, "diff": true, "find": true, "stat": true, "type": true, "env": true,
	"printenv": true, "date": true, "uptime": true,
}

var mediumRisk = map[string]bool{
	"touch": true, "mkdir": true, "cp": true, "mv": true, "npm": true, "yarn": true,
	"pnpm": true, "bun": true, "pip": true, "pip3": true, "cargo": true, "make": true,
	"cmake": true, "gcc": true, "clang": true, "rustc": true, "python": true,
	"python3": true, "node": true, "tee": true, "ln": true,
}

var alwaysBlocked = map[string]bool{
	"rm": true, "sudo": true, "su": true, "shutdown": true, "reboot": true,
	"halt": true, "poweroff": true, "dd": true, "mkfs": true, "fdisk": true,
	"parted": true, "format": true, "del": true, "rmdir": true,
}

// injectionPatterns is checked in order so the denial reason names the
// first pattern actually found, preferring the more specific multi-char
// patterns over their single-char substrings.
var injectionPatterns = []string{
	"`", "$(", "${", " >> ", " > ", "&&", "||", ";", "|", ">",
}

// ClassifyRisk returns the risk tier of a command's first whitespace-
// delimited token.
func ClassifyRisk(command string) Risk {
	token := firstToken(command)
	if lowRisk[token] {
		return RiskLow
	}
	if mediumRisk[token] {
		return RiskMedium
	}
	return RiskHigh
}

func firstToken(command string) string {
	fields := strings.Fields(strings.TrimSpace(command))
	if len(fields) == 0 {
		return ""
	}
	// strip any path prefix, e.g. "/bin/ls" -> "ls"
	tok := fields[0]
	if idx := strings.LastIndexByte(tok, '/'); idx >= 0 {
		tok = tok[idx+1:]
	}
	return tok
}

// detectInjection reports the first injection pattern found in command, if any.
func detectInjection(command string) (string, bool) {
	for _, pat := range injectionPatterns {
		if strings.Contains(command, pat) {
			return pat, true
		}
	}
	return "", false
}

// RateLimiterConfig configures the Full-mode action limiter: MaxActions
// burst capacity refilling continuously over WindowSecs.
type RateLimiterConfig struct {
	WindowSecs int
	MaxActions int
}

// rateLimiter wraps golang.org/x/time/rate's token bucket, reinterpreting
// the spec's (window, max-actions) pair as (burst, refill-rate) so
// MaxActions immediate calls succeed and the bucket then refills smoothly
// across WindowSecs, matching SPEC_FULL.md §4.4/§5's Full-mode limiter
// without the teacher's mutex-protected timestamp slice.
type rateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func newRateLimiter(cfg RateLimiterConfig) *rateLimiter {
	if cfg.WindowSecs <= 0 {
		cfg.WindowSecs = 60
	}
	if cfg.MaxActions <= 0 {
		cfg.MaxActions = 30
	}
	refillRate := rate.Limit(float64(cfg.MaxActions) / float64(cfg.WindowSecs))
	return &rateLimiter{limiter: rate.NewLimiter(refillRate, cfg.MaxActions), now: time.Now}
}

// allow admits the action iff a token is available at the caller's
// injectable clock time.
func (rl *rateLimiter) allow() bool {
	return rl.limiter.AllowN(rl.now(), 1)
}

// PathValidation configures workspace confinement for validate_path.
type PathValidation struct {
	WorkspaceRoot   string
	BlockedDirs     []string
	resolveSymlinks func(string) (string, bool) // injected for tests; real impl canonicalises via os
}

// Policy is the stateful, shared security policy of SPEC_FULL.md §4.4.
type Policy struct {
	mu          sync.RWMutex
	autonomy    Autonomy
	paths       PathValidation
	limiter     *rateLimiter
	audit       *AuditLog
}

// NewPolicy constructs a Policy. If rlCfg is the zero value, sensible
// defaults are applied.
func NewPolicy(autonomy Autonomy, paths PathValidation, rlCfg RateLimiterConfig) *Policy {
	return &Policy{
		autonomy: autonomy,
		paths:    paths,
		limiter:  newRateLimiter(rlCfg),
		audit:    NewAuditLog(),
	}
}

// SetAutonomy changes the autonomy level at runtime.
func (p *Policy) SetAutonomy(a Autonomy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autonomy = a
}

// Autonomy returns the current autonomy level.
func (p *Policy) Autonomy() Autonomy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autonomy
}

// ValidateCommand implements the decision table of SPEC_FULL.md §4.4.
func (p *Policy) ValidateCommand(command string) Decision {
	token := firstToken(command)
	if alwaysBlocked[token] {
		decision := denied(fmt.Sprintf("%q is always blocked", token))
		p.audit.Append(AuditEntryFor(command, string(RiskHigh), decision))
		return decision
	}
	if pattern, found := detectInjection(command); found {
		decision := denied(fmt.Sprintf("command injection pattern detected: %q", pattern))
		p.audit.Append(AuditEntryFor(command, string(RiskHigh), decision))
		return decision
	}

	autonomy := p.Autonomy()
	risk := ClassifyRisk(command)

	var decision Decision
	switch autonomy {
	case AutonomyReadOnly:
		if risk == RiskLow {
			decision = allowed()
		} else {
			decision = denied(fmt.Sprintf("%s-risk commands are denied in read-only mode", risk))
		}
	case AutonomySupervised:
		if risk == RiskLow {
			decision = allowed()
		} else {
			decision = needsApproval()
		}
	case AutonomyFull:
		if p.limiter.allow() {
			decision = allowed()
		} else {
			decision = denied("rate limit exceeded")
		}
	default:
		decision = denied(fmt.Sprintf("unknown autonomy level %q", autonomy))
	}

	p.audit.Append(AuditEntryFor(command, string(risk), decision))
	return decision
}

// ValidatePath implements the rules of SPEC_FULL.md §4.4.
func (p *Policy) ValidatePath(path string) Decision {
	if strings.ContainsRune(path, 0) {
		return denied("path contains a null byte")
	}
	for _, part := range strings.Split(filepathSplit(path), "/") {
		if part == ".." {
			return denied("path contains a literal .. component")
		}
	}

	candidate := path
	if p.paths.resolveSymlinks != nil {
		if resolved, ok := p.paths.resolveSymlinks(path); ok {
			candidate = resolved
		}
	}

	for _, blocked := range p.paths.BlockedDirs {
		if blocked == "" {
			continue
		}
		if strings.HasPrefix(candidate, blocked) {
			return denied(fmt.Sprintf("path is under blocked directory %q", blocked))
		}
	}

	if p.paths.WorkspaceRoot != "" && !strings.HasPrefix(candidate, p.paths.WorkspaceRoot) {
		return denied(fmt.Sprintf("path is outside workspace root %q", p.paths.WorkspaceRoot))
	}

	return allowed()
}

// AuditLog returns the append-only audit log for this policy.
func (p *Policy) AuditLog() *AuditLog {
	return p.audit
}

func filepathSplit(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
